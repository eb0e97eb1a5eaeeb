// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Schemas SchemasConfig `yaml:"schemas"`
	Cache   CacheConfig   `yaml:"cache"`
	Types   TypesConfig   `yaml:"types"`
	Plugins PluginsConfig `yaml:"plugins"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SchemasConfig locates schema documents.
type SchemasConfig struct {
	Dir    string `yaml:"dir"`
	Strict bool   `yaml:"strict"` // Treat warnings as failures
}

// CacheConfig configures the schema and report cache.
type CacheConfig struct {
	Enabled *bool         `yaml:"enabled"` // Default: true
	TTL     time.Duration `yaml:"ttl"`
	Driver  string        `yaml:"driver"` // "memory", "sqlite" or "postgres"
	DSN     string        `yaml:"dsn"`    // File path (sqlite) or connection URL (postgres)
	Prefix  string        `yaml:"prefix"` // Key namespace inside a shared store
}

// IsEnabled reports whether caching is on. Unset means on.
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TypesConfig configures the field-type registry.
type TypesConfig struct {
	AllowOverwrite bool              `yaml:"allow_overwrite"`
	Aliases        map[string]string `yaml:"aliases"` // alias -> base type
}

// PluginsConfig lists directories scanned for plugin manifests.
type PluginsConfig struct {
	Dirs []string `yaml:"dirs"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Serve metrics while watching
	Addr    string `yaml:"addr"`    // Listen address (default: :9464)
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// CacheDrivers lists the accepted cache.driver values.
var CacheDrivers = []string{"memory", "sqlite", "postgres"}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML text. ${VAR} references are
// expanded, MODELKIT_* variables override the file, then defaults apply.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and otherwise builds the
// configuration from defaults and environment variables.
//
// Environment variables:
//
//	MODELKIT_SCHEMAS_DIR           - Schema directory (default: schemas)
//	MODELKIT_SCHEMAS_STRICT        - Fail on warnings (default: false)
//	MODELKIT_CACHE_ENABLED         - Enable the cache (default: true)
//	MODELKIT_CACHE_TTL             - Entry lifetime, e.g. 30m (default: 1h)
//	MODELKIT_CACHE_DRIVER          - memory, sqlite or postgres (default: memory)
//	MODELKIT_CACHE_DSN             - Cache database path or URL
//	MODELKIT_CACHE_PREFIX          - Cache key prefix (default: modelkit:)
//	MODELKIT_TYPES_ALLOW_OVERWRITE - Let plugins replace types (default: false)
//	MODELKIT_PLUGINS_DIRS          - Comma separated manifest directories
//	MODELKIT_LOG_LEVEL             - debug, info, warn, error (default: info)
//	MODELKIT_LOG_FORMAT            - json or console (default: console)
//	MODELKIT_METRICS_ENABLED       - Serve /metrics while watching (default: false)
//	MODELKIT_METRICS_ADDR          - Metrics listen address (default: :9464)
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Parse(nil)
}

// applyEnvOverrides applies MODELKIT_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Schemas
	if v := os.Getenv("MODELKIT_SCHEMAS_DIR"); v != "" {
		cfg.Schemas.Dir = v
	}
	if v := os.Getenv("MODELKIT_SCHEMAS_STRICT"); v != "" {
		cfg.Schemas.Strict = parseBool(v)
	}

	// Cache
	if v := os.Getenv("MODELKIT_CACHE_ENABLED"); v != "" {
		enabled := parseBool(v)
		cfg.Cache.Enabled = &enabled
	}
	if v := os.Getenv("MODELKIT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("MODELKIT_CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}
	if v := os.Getenv("MODELKIT_CACHE_DSN"); v != "" {
		cfg.Cache.DSN = v
	}
	if v := os.Getenv("MODELKIT_CACHE_PREFIX"); v != "" {
		cfg.Cache.Prefix = v
	}

	// Types and plugins
	if v := os.Getenv("MODELKIT_TYPES_ALLOW_OVERWRITE"); v != "" {
		cfg.Types.AllowOverwrite = parseBool(v)
	}
	if v := os.Getenv("MODELKIT_PLUGINS_DIRS"); v != "" {
		cfg.Plugins.Dirs = splitList(v)
	}

	// Logging
	if v := os.Getenv("MODELKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MODELKIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics
	if v := os.Getenv("MODELKIT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MODELKIT_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("MODELKIT_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Schemas.Dir == "" {
		cfg.Schemas.Dir = "schemas"
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	cfg.Cache.Driver = strings.ToLower(cfg.Cache.Driver)
	if cfg.Cache.Driver == "sqlite" && cfg.Cache.DSN == "" {
		cfg.Cache.DSN = "modelkit-cache.db"
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "modelkit:"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9464"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	if !validDrivers[cfg.Cache.Driver] {
		return fmt.Errorf("cache.driver must be one of: %s, got %q", strings.Join(CacheDrivers, ", "), cfg.Cache.Driver)
	}
	if cfg.Cache.Driver == "postgres" && cfg.Cache.DSN == "" {
		return fmt.Errorf("cache.dsn is required when cache.driver is 'postgres'")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", cfg.Cache.TTL)
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	for alias, base := range cfg.Types.Aliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(base) == "" {
			return fmt.Errorf("types.aliases entries need both an alias and a base type")
		}
	}
	return nil
}
