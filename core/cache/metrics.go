package cache

import (
	"sync"
	"time"
)

// Axis names one kind of cached result.
type Axis string

const (
	AxisSchemas Axis = "schemas"
	AxisReports Axis = "reports"
)

// Observer receives the same events Metrics counts. The Prometheus adapter
// implements it.
type Observer interface {
	CacheHit(axis Axis, bytesSaved int, saved time.Duration)
	CacheMiss(axis Axis, cost time.Duration)
	CacheError(axis Axis)
}

// AxisStats are the counters of one axis.
type AxisStats struct {
	Hits       uint64  `json:"hits" yaml:"hits"`
	Misses     uint64  `json:"misses" yaml:"misses"`
	Errors     uint64  `json:"errors" yaml:"errors"`
	BytesSaved uint64  `json:"bytes_saved" yaml:"bytes_saved"`
	MsSaved    float64 `json:"ms_saved" yaml:"ms_saved"`
}

// HitRate is hits over lookups, 0 when nothing was looked up.
func (s AxisStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Schemas AxisStats `json:"schemas" yaml:"schemas"`
	Reports AxisStats `json:"reports" yaml:"reports"`
}

// Total sums both axes.
func (s Snapshot) Total() AxisStats {
	return AxisStats{
		Hits:       s.Schemas.Hits + s.Reports.Hits,
		Misses:     s.Schemas.Misses + s.Reports.Misses,
		Errors:     s.Schemas.Errors + s.Reports.Errors,
		BytesSaved: s.Schemas.BytesSaved + s.Reports.BytesSaved,
		MsSaved:    s.Schemas.MsSaved + s.Reports.MsSaved,
	}
}

type axisCounters struct {
	stats    AxisStats
	missCost time.Duration
}

// Metrics counts cache effectiveness per axis. A hit is credited with the
// average cost measured over the misses of its axis so far.
type Metrics struct {
	mu       sync.Mutex
	axes     map[Axis]*axisCounters
	observer Observer
}

// NewMetrics creates empty counters. observer may be nil.
func NewMetrics(observer Observer) *Metrics {
	return &Metrics{
		axes: map[Axis]*axisCounters{
			AxisSchemas: {},
			AxisReports: {},
		},
		observer: observer,
	}
}

func (m *Metrics) counters(axis Axis) *axisCounters {
	c, ok := m.axes[axis]
	if !ok {
		c = &axisCounters{}
		m.axes[axis] = c
	}
	return c
}

// Hit records a lookup served from the cache.
func (m *Metrics) Hit(axis Axis, bytesSaved int) {
	m.mu.Lock()
	c := m.counters(axis)
	var saved time.Duration
	if c.stats.Misses > 0 {
		saved = c.missCost / time.Duration(c.stats.Misses)
	}
	c.stats.Hits++
	c.stats.BytesSaved += uint64(bytesSaved)
	c.stats.MsSaved += float64(saved) / float64(time.Millisecond)
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.CacheHit(axis, bytesSaved, saved)
	}
}

// Miss records a lookup that had to compute the result, and what that took.
func (m *Metrics) Miss(axis Axis, cost time.Duration) {
	m.mu.Lock()
	c := m.counters(axis)
	c.stats.Misses++
	c.missCost += cost
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.CacheMiss(axis, cost)
	}
}

// Error records a store failure that was treated as a miss.
func (m *Metrics) Error(axis Axis) {
	m.mu.Lock()
	m.counters(axis).stats.Errors++
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.CacheError(axis)
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Schemas: m.counters(AxisSchemas).stats,
		Reports: m.counters(AxisReports).stats,
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.axes {
		*c = axisCounters{}
	}
}
