// Package http serves the watch-mode endpoints: health, the latest
// validation status, cache counters and Prometheus metrics.
package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/consistency"
)

// Status is the outcome of the latest validation run.
type Status struct {
	CheckedAt time.Time          `json:"checked_at"`
	Dir       string             `json:"dir"`
	Models    int                `json:"models"`
	Valid     bool               `json:"valid"`
	Error     string             `json:"error,omitempty"`
	Report    consistency.Report `json:"report"`
}

// StatusSource reports the latest validation run, if any.
type StatusSource interface {
	Status() (Status, bool)
}

// CacheStats exposes cache counters. *cache.Metrics satisfies it.
type CacheStats interface {
	Snapshot() cache.Snapshot
}

// RouterConfig selects the optional endpoints.
type RouterConfig struct {
	Status         StatusSource
	Cache          CacheStats
	MetricsHandler http.Handler
	MetricsPath    string // Default: /metrics
}

// NewRouter creates the watch-mode router.
func NewRouter(logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handler{status: cfg.Status, cache: cfg.Cache}

	r.Get("/health", h.liveness)
	r.Get("/health/live", h.liveness)
	r.Get("/health/ready", h.readiness)
	r.Get("/status", h.currentStatus)
	r.Get("/cache", h.cacheStats)

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}
	return r
}

type handler struct {
	status StatusSource
	cache  CacheStats
}

func (h *handler) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness is ready once a validation run has finished without errors.
func (h *handler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	st, ok := h.status.Status()
	switch {
	case !ok:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "pending",
		})
	case st.Error != "":
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  st.Error,
		})
	case !st.Valid:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "invalid",
			"errors": len(st.Report.Errors),
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *handler) currentStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeError(w, http.StatusNotFound, "status is not tracked")
		return
	}
	st, ok := h.status.Status()
	if !ok {
		writeError(w, http.StatusNotFound, "no validation run yet")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "cache is disabled")
		return
	}
	snap := h.cache.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"schemas":  snap.Schemas,
		"reports":  snap.Reports,
		"hit_rate": snap.Total().HitRate(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// NewLoggingMiddleware logs requests at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
