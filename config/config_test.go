package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/modelkit/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
schemas:
  dir: "app/models"
  strict: true

cache:
  enabled: true
  ttl: 15m
  driver: "sqlite"
  dsn: "/tmp/cache.db"
  prefix: "ci:"

types:
  allow_overwrite: true
  aliases:
    str: string
    money: decimal

plugins:
  dirs: ["plugins", "vendor/plugins"]

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  addr: "127.0.0.1:9100"
`

	cfg := writeAndLoad(t, content)

	if cfg.Schemas.Dir != "app/models" || !cfg.Schemas.Strict {
		t.Errorf("Schemas = %+v", cfg.Schemas)
	}
	if !cfg.Cache.IsEnabled() {
		t.Error("cache should be enabled")
	}
	if cfg.Cache.TTL != 15*time.Minute {
		t.Errorf("TTL = %s, want 15m", cfg.Cache.TTL)
	}
	if cfg.Cache.Driver != "sqlite" || cfg.Cache.DSN != "/tmp/cache.db" || cfg.Cache.Prefix != "ci:" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.Types.AllowOverwrite || cfg.Types.Aliases["money"] != "decimal" {
		t.Errorf("Types = %+v", cfg.Types)
	}
	if len(cfg.Plugins.Dirs) != 2 || cfg.Plugins.Dirs[1] != "vendor/plugins" {
		t.Errorf("Plugins.Dirs = %v", cfg.Plugins.Dirs)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9100" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Schemas.Dir != "schemas" {
		t.Errorf("Schemas.Dir = %s, want schemas", cfg.Schemas.Dir)
	}
	if !cfg.Cache.IsEnabled() {
		t.Error("cache should default to enabled")
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("TTL = %s, want 1h", cfg.Cache.TTL)
	}
	if cfg.Cache.Driver != "memory" {
		t.Errorf("Driver = %s, want memory", cfg.Cache.Driver)
	}
	if cfg.Cache.Prefix != "modelkit:" {
		t.Errorf("Prefix = %s, want modelkit:", cfg.Cache.Prefix)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should default to disabled")
	}
	if cfg.Metrics.Addr != ":9464" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_CacheDisabled(t *testing.T) {
	cfg := writeAndLoad(t, "cache:\n  enabled: false\n")
	if cfg.Cache.IsEnabled() {
		t.Error("cache should be disabled")
	}
}

func TestLoad_SQLiteDefaultDSN(t *testing.T) {
	cfg := writeAndLoad(t, "cache:\n  driver: SQLite\n")
	if cfg.Cache.Driver != "sqlite" {
		t.Errorf("Driver = %s, want sqlite", cfg.Cache.Driver)
	}
	if cfg.Cache.DSN != "modelkit-cache.db" {
		t.Errorf("DSN = %s, want modelkit-cache.db", cfg.Cache.DSN)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SCHEMA_ROOT", "/srv/schemas")

	cfg := writeAndLoad(t, "schemas:\n  dir: \"${TEST_SCHEMA_ROOT}/v2\"\n")
	if cfg.Schemas.Dir != "/srv/schemas/v2" {
		t.Errorf("Schemas.Dir = %s, want /srv/schemas/v2", cfg.Schemas.Dir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MODELKIT_SCHEMAS_DIR", "from-env")
	t.Setenv("MODELKIT_CACHE_ENABLED", "off")
	t.Setenv("MODELKIT_CACHE_TTL", "90s")
	t.Setenv("MODELKIT_CACHE_DRIVER", "postgres")
	t.Setenv("MODELKIT_CACHE_DSN", "postgres://localhost/modelkit")
	t.Setenv("MODELKIT_PLUGINS_DIRS", "a, b ,,c")
	t.Setenv("MODELKIT_LOG_LEVEL", "warn")
	t.Setenv("MODELKIT_METRICS_ENABLED", "1")

	cfg := writeAndLoad(t, "schemas:\n  dir: from-file\ncache:\n  ttl: 5m\n")

	if cfg.Schemas.Dir != "from-env" {
		t.Errorf("Schemas.Dir = %s, want from-env", cfg.Schemas.Dir)
	}
	if cfg.Cache.IsEnabled() {
		t.Error("MODELKIT_CACHE_ENABLED=off should disable the cache")
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("TTL = %s, want 90s", cfg.Cache.TTL)
	}
	if cfg.Cache.Driver != "postgres" || cfg.Cache.DSN != "postgres://localhost/modelkit" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if strings.Join(cfg.Plugins.Dirs, "|") != "a|b|c" {
		t.Errorf("Plugins.Dirs = %v, want [a b c]", cfg.Plugins.Dirs)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %s, want warn", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("MODELKIT_METRICS_ENABLED=1 should enable metrics")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown driver", "cache:\n  driver: redis\n", "cache.driver"},
		{"postgres without dsn", "cache:\n  driver: postgres\n", "cache.dsn"},
		{"negative ttl", "cache:\n  ttl: -1m\n", "cache.ttl"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"bad metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"empty alias", "types:\n  aliases:\n    str: \"\"\n", "types.aliases"},
		{"bad yaml", "schemas: [\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithFallback(t *testing.T) {
	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Schemas.Dir != "schemas" {
		t.Errorf("Schemas.Dir = %s, want schemas", cfg.Schemas.Dir)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("schemas:\n  dir: here\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Schemas.Dir != "here" {
		t.Errorf("Schemas.Dir = %s, want here", cfg.Schemas.Dir)
	}

	cfg, err = config.LoadWithFallback("")
	if err != nil || cfg == nil {
		t.Fatalf("LoadWithFallback(\"\") = %v, %v", cfg, err)
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}
