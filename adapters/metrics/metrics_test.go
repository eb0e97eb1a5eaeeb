package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/modelkit/adapters/cachestore"
	"github.com/artpar/modelkit/adapters/metrics"
	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/consistency"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/schema"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.CacheLookups == nil {
		t.Error("CacheLookups is nil")
	}
	if m.ValidationRuns == nil {
		t.Error("ValidationRuns is nil")
	}
	if m.ConfigReloads == nil {
		t.Error("ConfigReloads is nil")
	}
}

func TestCacheEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.CacheMiss(cache.AxisSchemas, 3*time.Millisecond)
	m.CacheHit(cache.AxisSchemas, 512, 3*time.Millisecond)
	m.CacheHit(cache.AxisSchemas, 512, 3*time.Millisecond)
	m.CacheError(cache.AxisReports)

	if got := value(t, reg, "modelkit_cache_lookups_total", "axis", "schemas", "result", "hit"); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := value(t, reg, "modelkit_cache_lookups_total", "axis", "schemas", "result", "miss"); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := value(t, reg, "modelkit_cache_bytes_saved_total", "axis", "schemas"); got != 1024 {
		t.Errorf("bytes saved = %v, want 1024", got)
	}
	if got := value(t, reg, "modelkit_cache_errors_total", "axis", "reports"); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if n := series(t, reg, "modelkit_compute_duration_seconds"); n != 1 {
		t.Errorf("compute duration series = %d, want 1", n)
	}
}

func TestObserverThroughLoader(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	types := fieldtype.NewDefaultRegistry()
	c := cache.New(cachestore.NewMemory(nil), cache.WithMetrics(cache.NewMetrics(m)))
	l := cache.NewLoader(schema.NewParser(types), consistency.NewValidator(types), c)

	doc := []byte("model: Tag\nfields:\n  label: string\n")
	for i := 0; i < 3; i++ {
		if _, err := l.Parse(context.Background(), doc); err != nil {
			t.Fatalf("Parse: %v", err)
		}
	}

	if got := value(t, reg, "modelkit_cache_lookups_total", "axis", "schemas", "result", "hit"); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "modelkit_cache_lookups_total" {
			found = true
		}
	}
	if !found {
		t.Error("modelkit_cache_lookups_total metric not found")
	}
}

func TestObserveReport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	var r consistency.Report
	r.Add(consistency.Issue{Code: consistency.CodeMissingTarget, Severity: consistency.SeverityError, Message: "x"})
	r.Add(consistency.Issue{Code: consistency.CodeMissingInverse, Severity: consistency.SeverityWarning, Message: "y"})
	r.Add(consistency.Issue{Code: consistency.CodeMissingInverse, Severity: consistency.SeverityWarning, Message: "z"})
	m.ObserveReport(r, 4)
	m.ObserveReport(consistency.Report{}, 4)

	if got := value(t, reg, "modelkit_validation_runs_total", "result", "invalid"); got != 1 {
		t.Errorf("invalid runs = %v, want 1", got)
	}
	if got := value(t, reg, "modelkit_validation_runs_total", "result", "valid"); got != 1 {
		t.Errorf("valid runs = %v, want 1", got)
	}
	if got := value(t, reg, "modelkit_validation_issues", "severity", "warning"); got != 0 {
		t.Errorf("warnings gauge = %v, want 0 after a clean run", got)
	}
	if got := value(t, reg, "modelkit_schemas_loaded"); got != 4 {
		t.Errorf("schemas = %v, want 4", got)
	}
}

func TestPluginsAndConfig(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ObservePlugins(3, 1)
	if got := value(t, reg, "modelkit_plugin_loads_total", "result", "loaded"); got != 3 {
		t.Errorf("loaded = %v, want 3", got)
	}
	if got := value(t, reg, "modelkit_plugin_loads_total", "result", "failed"); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}

	at := time.Unix(1700000000, 0)
	m.ConfigReloaded(nil, at)
	m.ConfigReloaded(errors.New("bad yaml"), at.Add(time.Minute))

	if got := value(t, reg, "modelkit_config_reloads_total"); got != 1 {
		t.Errorf("reloads = %v, want 1", got)
	}
	if got := value(t, reg, "modelkit_config_reload_errors_total"); got != 1 {
		t.Errorf("reload errors = %v, want 1", got)
	}
	if got := value(t, reg, "modelkit_config_last_reload_timestamp"); got != 1700000000 {
		t.Errorf("last reload = %v, want 1700000000", got)
	}
}

// value returns the counter or gauge sample of family name whose labels
// match the given name/value pairs.
func value(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range f.GetMetric() {
			have := map[string]string{}
			for _, lp := range metric.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue metrics
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

// series counts the samples of family name.
func series(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}
