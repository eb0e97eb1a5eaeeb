package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/artpar/modelkit/core/consistency"
	"github.com/artpar/modelkit/core/schema"
	"github.com/artpar/modelkit/ports"
)

// Versioner exposes a counter that changes whenever type resolution could
// change. fieldtype.Registry implements it.
type Versioner interface {
	Version() uint64
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Loader parses and validates through a Cache.
type Loader struct {
	parser    *schema.Parser
	validator *consistency.Validator
	cache     *Cache
	versioner Versioner
	clock     ports.Clock

	mu    sync.Mutex
	paths map[string]string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithVersioner folds the registry version into every key, so registering
// or replacing a type invalidates earlier results.
func WithVersioner(v Versioner) LoaderOption {
	return func(l *Loader) { l.versioner = v }
}

// WithClock sets the clock used to measure miss costs.
func WithClock(c ports.Clock) LoaderOption {
	return func(l *Loader) { l.clock = c }
}

// NewLoader creates a loader. A nil cache behaves as a disabled one.
func NewLoader(parser *schema.Parser, validator *consistency.Validator, c *Cache, opts ...LoaderOption) *Loader {
	if c == nil {
		c = New(nil)
	}
	l := &Loader{
		parser:    parser,
		validator: validator,
		cache:     c,
		clock:     systemClock{},
		paths:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache returns the cache the loader goes through.
func (l *Loader) Cache() *Cache { return l.cache }

// Parse parses YAML or JSON schema text.
func (l *Loader) Parse(ctx context.Context, data []byte) (*schema.Schema, error) {
	if !l.cache.Enabled() {
		return l.parser.Parse(data)
	}
	key := Fingerprint(data, l.scope("schema"))
	if s, ok := l.cache.Schema(ctx, key); ok {
		l.cache.metrics.Hit(AxisSchemas, len(data))
		return s, nil
	}

	start := l.clock.Now()
	s, err := l.parser.Parse(data)
	l.cache.metrics.Miss(AxisSchemas, l.clock.Now().Sub(start))
	if err != nil {
		return nil, err
	}
	l.cache.PutSchema(ctx, key, s)
	return s, nil
}

// ParseFile parses a schema file. Entries are keyed by path, modification
// time and size; when a file changes, the entry of its previous version is
// dropped.
func (l *Loader) ParseFile(ctx context.Context, path string) (*schema.Schema, error) {
	if !l.cache.Enabled() {
		return l.parser.ParseFile(path)
	}
	key, size, err := fileStamp(path, l.scope("file"))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	l.mu.Lock()
	prev, seen := l.paths[path]
	l.paths[path] = key
	l.mu.Unlock()
	if seen && prev != key {
		l.cache.Forget(ctx, AxisSchemas, prev)
		l.cache.logger.Debug().Str("path", path).Msg("schema file changed")
	}

	if s, ok := l.cache.Schema(ctx, key); ok {
		l.cache.metrics.Hit(AxisSchemas, int(size))
		return s, nil
	}

	start := l.clock.Now()
	s, err := l.parser.ParseFile(path)
	l.cache.metrics.Miss(AxisSchemas, l.clock.Now().Sub(start))
	if err != nil {
		return nil, err
	}
	l.cache.PutSchema(ctx, key, s)
	return s, nil
}

// ParseDir parses every schema file under dir through ParseFile.
func (l *Loader) ParseDir(ctx context.Context, dir string) (schema.Set, error) {
	paths, err := schema.SchemaFiles(dir)
	if err != nil {
		return nil, err
	}
	set := make(schema.Set, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := l.ParseFile(ctx, path)
		if err != nil {
			return nil, err
		}
		set = append(set, s)
	}
	return set, nil
}

// Validate checks a schema set. Reports are keyed by the serialized set, so
// any change to any schema, or to the order of the set, is a miss.
func (l *Loader) Validate(ctx context.Context, set schema.Set) consistency.Report {
	if !l.cache.Enabled() {
		return normalizeReport(l.validator.Check(set))
	}
	data, err := schema.MarshalSet(set)
	if err != nil {
		l.cache.logger.Warn().Err(err).Msg("schema set not fingerprinted, validating uncached")
		return normalizeReport(l.validator.Check(set))
	}
	key := sum(l.scope("report"), data)
	if r, ok := l.cache.Report(ctx, key); ok {
		l.cache.metrics.Hit(AxisReports, len(data))
		return r
	}

	start := l.clock.Now()
	r := normalizeReport(l.validator.Check(set))
	l.cache.metrics.Miss(AxisReports, l.clock.Now().Sub(start))
	l.cache.PutReport(ctx, key, r)
	return r
}

// Forget drops the entry of one file, if the loader has seen it.
func (l *Loader) Forget(ctx context.Context, path string) {
	l.mu.Lock()
	key, ok := l.paths[path]
	delete(l.paths, path)
	l.mu.Unlock()
	if ok {
		l.cache.Forget(ctx, AxisSchemas, key)
	}
}

func (l *Loader) scope(kind string) string {
	if l.versioner == nil {
		return kind
	}
	return kind + "@" + strconv.FormatUint(l.versioner.Version(), 10)
}
