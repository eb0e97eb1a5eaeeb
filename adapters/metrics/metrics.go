// Package metrics provides Prometheus metrics collection for modelkit.
package metrics

import (
	"time"

	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/consistency"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modelkit"

var _ cache.Observer = (*Collector)(nil)

// Collector holds all Prometheus metrics for modelkit. It receives cache
// events as a cache.Observer.
type Collector struct {
	// Cache metrics
	CacheLookups      *prometheus.CounterVec
	CacheErrors       *prometheus.CounterVec
	CacheBytesSaved   *prometheus.CounterVec
	CacheSecondsSaved *prometheus.CounterVec
	ComputeDuration   *prometheus.HistogramVec

	// Validation metrics
	ValidationRuns   *prometheus.CounterVec
	ValidationIssues *prometheus.GaugeVec
	SchemasLoaded    prometheus.Gauge

	// Plugin metrics
	PluginLoads *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with reg. Tests pass a
// fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by axis and result (hit or miss)",
			},
			[]string{"axis", "result"},
		),
		CacheErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Cache store failures treated as misses",
			},
			[]string{"axis"},
		),
		CacheBytesSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_bytes_saved_total",
				Help:      "Input bytes not reparsed thanks to cache hits",
			},
			[]string{"axis"},
		),
		CacheSecondsSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_seconds_saved_total",
				Help:      "Estimated compute time saved by cache hits",
			},
			[]string{"axis"},
		),
		ComputeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compute_duration_seconds",
				Help:      "Time spent parsing or validating on a cache miss",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"axis"},
		),

		ValidationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_runs_total",
				Help:      "Consistency checks by outcome",
			},
			[]string{"result"},
		),
		ValidationIssues: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "validation_issues",
				Help:      "Issues found by the last consistency check",
			},
			[]string{"severity"},
		),
		SchemasLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schemas_loaded",
				Help:      "Schemas in the last checked set",
			},
		),

		PluginLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_loads_total",
				Help:      "Plugin load attempts by result",
			},
			[]string{"result"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of failed configuration reloads",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful configuration reload",
			},
		),
	}
}

// CacheHit implements cache.Observer.
func (c *Collector) CacheHit(axis cache.Axis, bytesSaved int, saved time.Duration) {
	c.CacheLookups.WithLabelValues(string(axis), "hit").Inc()
	c.CacheBytesSaved.WithLabelValues(string(axis)).Add(float64(bytesSaved))
	c.CacheSecondsSaved.WithLabelValues(string(axis)).Add(saved.Seconds())
}

// CacheMiss implements cache.Observer.
func (c *Collector) CacheMiss(axis cache.Axis, cost time.Duration) {
	c.CacheLookups.WithLabelValues(string(axis), "miss").Inc()
	c.ComputeDuration.WithLabelValues(string(axis)).Observe(cost.Seconds())
}

// CacheError implements cache.Observer.
func (c *Collector) CacheError(axis cache.Axis) {
	c.CacheErrors.WithLabelValues(string(axis)).Inc()
}

// ObserveReport records the outcome of a consistency check over n schemas.
func (c *Collector) ObserveReport(r consistency.Report, n int) {
	result := "valid"
	if !r.IsValid() {
		result = "invalid"
	}
	c.ValidationRuns.WithLabelValues(result).Inc()
	c.ValidationIssues.WithLabelValues(string(consistency.SeverityError)).Set(float64(len(r.Errors)))
	c.ValidationIssues.WithLabelValues(string(consistency.SeverityWarning)).Set(float64(len(r.Warnings)))
	c.SchemasLoaded.Set(float64(n))
}

// ObservePlugins records a discovery pass.
func (c *Collector) ObservePlugins(loaded, failed int) {
	c.PluginLoads.WithLabelValues("loaded").Add(float64(loaded))
	c.PluginLoads.WithLabelValues("failed").Add(float64(failed))
}

// ConfigReloaded records a configuration reload attempt.
func (c *Collector) ConfigReloaded(err error, at time.Time) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}
