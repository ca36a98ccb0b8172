package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/loading"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	body := scrape(t, metrics)
	if !strings.Contains(body, "fbr_console_loading_active 0") {
		t.Fatalf("expected body to contain the loading gauge, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestMetricsObserveUpstream(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveUpstream("fbr", "authentication", 40*time.Millisecond)
	metrics.ObserveUpstream("fbr", "ok", 10*time.Millisecond)
	metrics.ObserveUpstream("fbr", "ok", 10*time.Millisecond)

	body := scrape(t, metrics)
	if !strings.Contains(body, `fbr_console_upstream_requests_total{outcome="ok",source="fbr"} 2`) {
		t.Fatalf("expected upstream counter, got: %s", body)
	}
	if !strings.Contains(body, `fbr_console_upstream_requests_total{outcome="authentication",source="fbr"} 1`) {
		t.Fatalf("expected authentication outcome, got: %s", body)
	}
}

func TestMetricsObserveLoading(t *testing.T) {
	metrics := NewMetrics()
	signal := loading.NewSignal()
	stop := metrics.ObserveLoading(signal)
	defer stop()

	signal.Show("Loading HS codes...")
	if body := scrape(t, metrics); !strings.Contains(body, "fbr_console_loading_active 1") {
		t.Fatalf("expected gauge to be set, got: %s", body)
	}
	signal.Hide()
	if body := scrape(t, metrics); !strings.Contains(body, "fbr_console_loading_active 0") {
		t.Fatalf("expected gauge to be cleared, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveUpstream("fbr", "ok", time.Millisecond)
	m.ObserveLoading(loading.NewSignal())()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
