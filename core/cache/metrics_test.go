package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/artpar/modelkit/adapters/clock"
	"github.com/artpar/modelkit/core/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	saved  []time.Duration
}

func (r *recorder) CacheHit(axis cache.Axis, bytesSaved int, saved time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "hit:"+string(axis))
	r.saved = append(r.saved, saved)
}

func (r *recorder) CacheMiss(axis cache.Axis, cost time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "miss:"+string(axis))
}

func (r *recorder) CacheError(axis cache.Axis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error:"+string(axis))
}

func TestMetrics_CreditsAverageMissCost(t *testing.T) {
	m := cache.NewMetrics(nil)

	m.Hit(cache.AxisSchemas, 10) // nothing measured yet
	m.Miss(cache.AxisSchemas, 2*time.Millisecond)
	m.Miss(cache.AxisSchemas, 6*time.Millisecond)
	m.Hit(cache.AxisSchemas, 100)
	m.Hit(cache.AxisSchemas, 100)
	m.Error(cache.AxisReports)

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap.Schemas.Hits)
	assert.Equal(t, uint64(2), snap.Schemas.Misses)
	assert.Equal(t, uint64(210), snap.Schemas.BytesSaved)
	assert.InDelta(t, 8.0, snap.Schemas.MsSaved, 1e-9)
	assert.InDelta(t, 0.6, snap.Schemas.HitRate(), 1e-9)
	assert.Equal(t, uint64(1), snap.Reports.Errors)
	assert.Equal(t, uint64(1), snap.Total().Errors)
	assert.Zero(t, snap.Reports.HitRate())

	m.Reset()
	assert.Equal(t, cache.Snapshot{}, m.Snapshot())
}

func TestMetrics_Concurrent(t *testing.T) {
	m := cache.NewMetrics(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Miss(cache.AxisReports, time.Millisecond)
				m.Hit(cache.AxisReports, 1)
			}
		}()
	}
	wg.Wait()
	snap := m.Snapshot().Reports
	assert.Equal(t, uint64(1600), snap.Hits)
	assert.Equal(t, uint64(1600), snap.Misses)
}

func TestLoader_MeasuresMissCost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rec := &recorder{}
	step := 4 * time.Millisecond
	c := cache.New(f.store, cache.WithMetrics(cache.NewMetrics(rec)))
	l := cache.NewLoader(f.parser, f.validator, c,
		cache.WithClock(clock.NewStepping(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step)))

	for i := 0; i < 3; i++ {
		_, err := l.Parse(ctx, []byte(postYAML))
		require.NoError(t, err)
	}

	snap := c.Metrics().Snapshot().Schemas
	assert.Equal(t, uint64(1), snap.Misses)
	assert.Equal(t, uint64(2), snap.Hits)
	assert.InDelta(t, 8.0, snap.MsSaved, 1e-9)

	assert.Equal(t, []string{"miss:schemas", "hit:schemas", "hit:schemas"}, rec.events)
	assert.Equal(t, []time.Duration{step, step}, rec.saved)
}
