// Package cache memoizes parsed schemas and consistency reports.
//
// Entries are keyed by content fingerprints and kept in a ports.CacheStore.
// The cache never changes a result: a hit returns exactly what a fresh
// computation would, and a store that fails behaves like an empty one.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/modelkit/core/consistency"
	"github.com/artpar/modelkit/core/schema"
	"github.com/artpar/modelkit/ports"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrCacheUnavailable wraps store failures. It is logged, never returned to
// callers of Loader.
var ErrCacheUnavailable = errors.New("cache unavailable")

// DefaultTTL applies when no TTL option is given.
const DefaultTTL = time.Hour

// Cache stores schemas and reports in a backing store.
type Cache struct {
	store   ports.CacheStore
	enabled bool
	ttl     time.Duration
	prefix  string
	metrics *Metrics
	logger  zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime. Zero or less keeps entries until flushed.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithPrefix namespaces every key, so several tools can share one store.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMetrics replaces the default counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// Disabled turns every operation into a no-op.
func Disabled() Option {
	return func(c *Cache) { c.enabled = false }
}

// New creates a cache over store. A nil store yields a disabled cache.
func New(store ports.CacheStore, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		enabled: store != nil,
		ttl:     DefaultTTL,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.enabled = false
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Enabled reports whether lookups reach the store.
func (c *Cache) Enabled() bool { return c.enabled }

// Metrics returns the counters.
func (c *Cache) Metrics() *Metrics { return c.metrics }

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Schema returns the cached schema stored under key.
func (c *Cache) Schema(ctx context.Context, key string) (*schema.Schema, bool) {
	data, ok := c.get(ctx, AxisSchemas, key)
	if !ok {
		return nil, false
	}
	s, err := schema.Parse(data)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached schema")
		c.Forget(ctx, AxisSchemas, key)
		return nil, false
	}
	return s, true
}

// PutSchema stores a schema under key.
func (c *Cache) PutSchema(ctx context.Context, key string, s *schema.Schema) {
	if !c.enabled {
		return
	}
	data, err := schema.Marshal(s)
	if err != nil {
		c.logger.Warn().Err(err).Str("model", s.Name()).Msg("schema not cached")
		return
	}
	c.put(ctx, AxisSchemas, key, data)
}

// Report returns the cached report stored under key.
func (c *Cache) Report(ctx context.Context, key string) (consistency.Report, bool) {
	data, ok := c.get(ctx, AxisReports, key)
	if !ok {
		return consistency.Report{}, false
	}
	var r consistency.Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached report")
		c.Forget(ctx, AxisReports, key)
		return consistency.Report{}, false
	}
	return normalizeReport(r), true
}

// PutReport stores a report under key.
func (c *Cache) PutReport(ctx context.Context, key string, r consistency.Report) {
	if !c.enabled {
		return
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		c.logger.Warn().Err(err).Msg("report not cached")
		return
	}
	c.put(ctx, AxisReports, key, data)
}

// Forget drops one entry.
func (c *Cache) Forget(ctx context.Context, axis Axis, key string) {
	if !c.enabled {
		return
	}
	if err := c.store.Forget(ctx, c.storeKey(axis, key)); err != nil {
		c.failed(axis, "forget", err)
	}
}

// Clear drops this cache's entries. With a prefix only keys under it are
// removed, so other users of a shared store keep theirs.
func (c *Cache) Clear(ctx context.Context) {
	if !c.enabled {
		return
	}
	if err := Flush(ctx, c.store, c.prefix); err != nil {
		c.failed("", "flush", err)
		return
	}
	c.logger.Debug().Str("store", c.store.Name()).Str("prefix", c.prefix).Msg("cache cleared")
}

// Flush empties the namespace prefix of store, or the whole store when
// prefix is empty.
func Flush(ctx context.Context, store ports.CacheStore, prefix string) error {
	if prefix == "" {
		return store.Flush(ctx)
	}
	return store.FlushPrefix(ctx, prefix)
}

func (c *Cache) get(ctx context.Context, axis Axis, key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}
	data, ok, err := c.store.Get(ctx, c.storeKey(axis, key))
	if err != nil {
		c.failed(axis, "get", err)
		return nil, false
	}
	return data, ok
}

func (c *Cache) put(ctx context.Context, axis Axis, key string, data []byte) {
	if err := c.store.Put(ctx, c.storeKey(axis, key), data, c.ttl); err != nil {
		c.failed(axis, "put", err)
	}
}

func (c *Cache) storeKey(axis Axis, key string) string {
	return c.prefix + string(axis) + ":" + key
}

func (c *Cache) failed(axis Axis, op string, err error) {
	if axis != "" {
		c.metrics.Error(axis)
	}
	c.logger.Warn().
		Err(fmt.Errorf("%w: %s %s: %v", ErrCacheUnavailable, c.store.Name(), op, err)).
		Str("axis", string(axis)).
		Msg("cache store failed, treating as miss")
}

// normalizeReport gives decoded and freshly computed reports the same shape:
// empty lists are nil.
func normalizeReport(r consistency.Report) consistency.Report {
	if len(r.Errors) == 0 {
		r.Errors = nil
	}
	if len(r.Warnings) == 0 {
		r.Warnings = nil
	}
	if len(r.Cycles) == 0 {
		r.Cycles = nil
	}
	if len(r.MissingInverses) == 0 {
		r.MissingInverses = nil
	}
	return r
}
