// Package bootstrap wires the registry, plugins, cache store, loader and
// metrics from a configuration.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/modelkit/adapters/cachestore"
	"github.com/artpar/modelkit/adapters/clock"
	"github.com/artpar/modelkit/adapters/fieldplugins"
	"github.com/artpar/modelkit/adapters/metrics"
	"github.com/artpar/modelkit/config"
	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/consistency"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/plugin"
	"github.com/artpar/modelkit/core/schema"
	"github.com/artpar/modelkit/ports"
)

// App holds the wired components.
type App struct {
	Logger    zerolog.Logger
	Types     *fieldtype.Registry
	Plugins   *plugin.Manager
	Discovery plugin.DiscoveryResult
	Store     ports.CacheStore

	// Metrics and Registry are nil unless metrics are enabled.
	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	clock   ports.Clock
	catalog plugin.Catalog
	holder  *config.Holder
	stats   *cache.Metrics

	mu     sync.RWMutex
	cfg    *config.Config
	loader *cache.Loader
}

// Option configures New.
type Option func(*App)

// WithLogger replaces the logger built from the logging section.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) { a.Logger = logger }
}

// WithClock sets the time source of the cache store and loader.
func WithClock(c ports.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithCatalog replaces the built-in plugin catalog.
func WithCatalog(c plugin.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// New wires an application from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		Logger:  NewLogger(cfg.Logging, os.Stderr),
		clock:   clock.Real{},
		catalog: fieldplugins.Catalog(),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.Logger.Debug().Str("schemas", cfg.Schemas.Dir).Msg("initializing modelkit")

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = metrics.NewWithRegistry(a.Registry)
	}

	if err := a.initTypes(cfg); err != nil {
		return nil, fmt.Errorf("init types: %w", err)
	}
	a.initPlugins(cfg)

	if cfg.Cache.IsEnabled() {
		store, err := cachestore.Open(ctx, cfg.Cache.Driver, cfg.Cache.DSN, a.clock)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		a.Store = store
	}
	if a.Metrics != nil {
		a.stats = cache.NewMetrics(a.Metrics)
	} else {
		a.stats = cache.NewMetrics(nil)
	}
	a.loader = a.newLoader(cfg)

	return a, nil
}

// NewWithHotReload loads path into a config holder, wires the application
// and applies reloadable changes as the file or SIGHUP triggers them.
func NewWithHotReload(ctx context.Context, path string, opts ...Option) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	holder, err := config.NewHolder(path, a.Logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	holder.OnChange(a.ApplyConfig)
	holder.OnError(func(err error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloaded(err, a.clock.Now())
		}
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching unavailable")
	}
	holder.WatchSignals()
	a.holder = holder

	return a, nil
}

func (a *App) initTypes(cfg *config.Config) error {
	var opts []fieldtype.Option
	if cfg.Types.AllowOverwrite {
		opts = append(opts, fieldtype.WithOverwrite())
	}
	a.Types = fieldtype.NewRegistry(opts...)
	if err := fieldtype.RegisterBuiltins(a.Types); err != nil {
		return err
	}
	for alias, base := range cfg.Types.Aliases {
		if err := a.Types.RegisterAlias(alias, base); err != nil {
			return fmt.Errorf("alias %s: %w", alias, err)
		}
	}
	return nil
}

func (a *App) initPlugins(cfg *config.Config) {
	a.Plugins = plugin.NewManager(a.Types,
		plugin.WithLogger(a.Logger),
		plugin.WithCatalog(a.catalog),
		plugin.WithClock(clock.Func(a.clock)),
	)
	if len(cfg.Plugins.Dirs) == 0 {
		return
	}
	a.Discovery = a.Plugins.Discover(cfg.Plugins.Dirs...)
	if a.Metrics != nil {
		a.Metrics.ObservePlugins(len(a.Discovery.Loaded), len(a.Discovery.Failed))
	}
}

func (a *App) newLoader(cfg *config.Config) *cache.Loader {
	opts := []cache.Option{
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithLogger(a.Logger),
		cache.WithMetrics(a.stats),
	}
	if !cfg.Cache.IsEnabled() {
		opts = append(opts, cache.Disabled())
	}
	c := cache.New(a.Store, opts...)

	parser := schema.NewParser(a.Types)
	validator := consistency.NewValidator(a.Types, consistency.WithLogger(a.Logger))
	return cache.NewLoader(parser, validator, c,
		cache.WithVersioner(a.Types),
		cache.WithClock(a.clock),
	)
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Loader returns the active loader. It is replaced when the cache settings
// are reloaded.
func (a *App) Loader() *cache.Loader {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loader
}

// CacheStats returns the cache counters, which survive loader swaps.
func (a *App) CacheStats() *cache.Metrics {
	return a.stats
}

// ApplyConfig applies the reloadable fields of cfg. Store, driver and
// listener changes need a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	for alias, base := range cfg.Types.Aliases {
		if current, ok := a.Types.Canonical(alias); ok {
			if want, _ := a.Types.Canonical(base); current == want {
				continue
			}
		}
		if err := a.Types.RegisterAlias(alias, base); err != nil {
			a.Logger.Warn().Err(err).Str("alias", alias).Msg("alias not applied")
		}
	}

	if !slices.Equal(a.Config().Plugins.Dirs, cfg.Plugins.Dirs) {
		result := a.Plugins.Rediscover(cfg.Plugins.Dirs...)
		for _, info := range result.Loaded {
			a.Logger.Info().Str("plugin", info.Name).Bool("enabled", info.Enabled).Msg("plugin listed after reload")
		}
		if a.Metrics != nil {
			a.Metrics.ObservePlugins(len(result.Loaded), len(result.Failed))
		}
	}

	loader := a.newLoader(cfg)
	if a.Store == nil && cfg.Cache.IsEnabled() {
		a.Logger.Warn().Msg("cache was disabled at startup, restart to enable it")
	}

	a.mu.Lock()
	a.cfg = cfg
	a.loader = loader
	a.mu.Unlock()

	if a.Metrics != nil {
		a.Metrics.ConfigReloaded(nil, a.clock.Now())
	}
}

// Validate parses every schema under dir and checks the set.
func (a *App) Validate(ctx context.Context, dir string) (schema.Set, consistency.Report, error) {
	loader := a.Loader()
	start := a.clock.Now()

	set, err := loader.ParseDir(ctx, dir)
	if err != nil {
		return nil, consistency.Report{}, err
	}
	report := loader.Validate(ctx, set)

	if a.Metrics != nil {
		a.Metrics.ObserveReport(report, len(set))
	}
	a.Logger.Debug().
		Str("dir", dir).
		Int("models", len(set)).
		Int("errors", len(report.Errors)).
		Int("warnings", len(report.Warnings)).
		Dur("duration", a.clock.Now().Sub(start)).
		Msg("schemas validated")
	return set, report, nil
}

// Close stops config watching and releases the cache store.
func (a *App) Close() error {
	if a.holder != nil {
		a.holder.Stop()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("close cache store: %w", err)
		}
	}
	return nil
}

// NewLogger builds a logger from the logging section. Console format writes
// human-readable lines, anything else JSON.
func NewLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}
