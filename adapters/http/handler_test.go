package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apihttp "github.com/artpar/modelkit/adapters/http"
	"github.com/artpar/modelkit/core/cache"
	"github.com/artpar/modelkit/core/consistency"
)

type fixedStatus struct {
	st apihttp.Status
	ok bool
}

func (f fixedStatus) Status() (apihttp.Status, bool) { return f.st, f.ok }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid json %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestLiveness(t *testing.T) {
	r := apihttp.NewRouter(zerolog.Nop(), apihttp.RouterConfig{})

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec, body := get(t, r, path)
		if rec.Code != http.StatusOK || body["status"] != "ok" {
			t.Errorf("%s = %d %v", path, rec.Code, body)
		}
	}
}

func TestReadiness(t *testing.T) {
	invalid := consistency.Report{}
	invalid.Add(consistency.Issue{Code: consistency.CodeMissingTarget, Severity: consistency.SeverityError, Message: "x"})

	tests := []struct {
		name   string
		source fixedStatus
		code   int
		status string
	}{
		{"pending", fixedStatus{}, http.StatusServiceUnavailable, "pending"},
		{"load error", fixedStatus{st: apihttp.Status{Error: "boom"}, ok: true}, http.StatusServiceUnavailable, "unhealthy"},
		{"invalid", fixedStatus{st: apihttp.Status{Report: invalid}, ok: true}, http.StatusServiceUnavailable, "invalid"},
		{"valid", fixedStatus{st: apihttp.Status{Valid: true}, ok: true}, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := apihttp.NewRouter(zerolog.Nop(), apihttp.RouterConfig{Status: tt.source})
			rec, body := get(t, r, "/health/ready")
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if body["status"] != tt.status {
				t.Errorf("status = %v, want %s", body["status"], tt.status)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	r := apihttp.NewRouter(zerolog.Nop(), apihttp.RouterConfig{})
	if rec, _ := get(t, r, "/status"); rec.Code != http.StatusNotFound {
		t.Errorf("untracked status = %d, want 404", rec.Code)
	}

	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r = apihttp.NewRouter(zerolog.Nop(), apihttp.RouterConfig{
		Status: fixedStatus{st: apihttp.Status{CheckedAt: checked, Dir: "schemas", Models: 3, Valid: true}, ok: true},
	})
	rec, body := get(t, r, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if body["models"] != float64(3) || body["dir"] != "schemas" || body["valid"] != true {
		t.Errorf("body = %v", body)
	}
	if body["checked_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("checked_at = %v", body["checked_at"])
	}
}

func TestCacheEndpoint(t *testing.T) {
	r := apihttp.NewRouter(zerolog.Nop(), apihttp.RouterConfig{})
	if rec, _ := get(t, r, "/cache"); rec.Code != http.StatusNotFound {
		t.Errorf("disabled cache = %d, want 404", rec.Code)
	}

	m := cache.NewMetrics(nil)
	m.Miss(cache.AxisSchemas, time.Millisecond)
	m.Hit(cache.AxisSchemas, 100)

	r = apihttp.NewRouter(zerolog.Nop(), apihttp.RouterConfig{Cache: m})
	rec, body := get(t, r, "/cache")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if body["hit_rate"] != 0.5 {
		t.Errorf("hit_rate = %v, want 0.5", body["hit_rate"])
	}
	schemas := body["schemas"].(map[string]any)
	if schemas["hits"] != float64(1) || schemas["bytes_saved"] != float64(100) {
		t.Errorf("schemas = %v", schemas)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "modelkit_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	r := apihttp.NewRouter(zerolog.Nop(), apihttp.RouterConfig{
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		MetricsPath:    "/internal/metrics",
	})

	if rec, _ := get(t, r, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("/metrics = %d, want 404 with a custom path", rec.Code)
	}
	rec, _ := get(t, r, "/internal/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "modelkit_test_total 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
