package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pf-studio/internal/metrics"
)

func serve(e *echo.Echo, method, target string) int {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	e.Any("/api/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.Add("XYZZY", "/api/custom", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/site/status", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "down")
	})
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "")
	})

	serve(e, http.MethodGet, "/api/v1/plans")
	serve(e, http.MethodPost, "/api/v1/login")
	serve(e, "XYZZY", "/api/custom")
	serve(e, http.MethodGet, "/site/status")
	serve(e, http.MethodGet, "/nope.html")
	serve(e, http.MethodGet, "/metrics")

	tests := []struct {
		name   string
		labels []string
		want   float64
	}{
		{"api get", []string{"GET", "200", "/api"}, 1},
		{"api post", []string{"POST", "200", "/api"}, 1},
		{"unknown method", []string{"other", "200", "/api"}, 1},
		{"http error status", []string{"GET", "503", "/site/status"}, 1},
		{"router not found", []string{"GET", "404", "static"}, 1},
		{"scrape not counted", []string{"GET", "200", "/metrics"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.labels...))
			if got != tt.want {
				t.Errorf("requests_total%v = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(m.RequestDuration); n != 5 {
		t.Errorf("duration series = %d, want 5", n)
	}
	if v := testutil.ToFloat64(m.RequestsInFlight); v != 0 {
		t.Errorf("in flight = %v, want 0", v)
	}
}
