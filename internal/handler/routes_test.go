package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"

	"pf-studio/internal/metrics"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "login.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Site.Root = root
	cfg.Metrics.Enabled = true
	rt := newTestRuntime(t, backend.URL)
	svc := newTestProxyService(t, cfg, rt)

	e := echo.New()
	RegisterRoutes(e, Handlers{
		Proxy:   NewProxyHandler(svc, discardLogger()),
		Health:  NewHealthHandler(rt, svc, "test"),
		Runtime: NewRuntimeHandler(rt, cfg, discardLogger()),
		I18n:    newTestI18nHandler(t),
	}, cfg, metrics.New())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /ping", http.MethodGet, "/ping", http.StatusOK},
		{"GET /site/status", http.MethodGet, "/site/status", http.StatusOK},
		{"GET /runtime-config.js", http.MethodGet, "/runtime-config.js", http.StatusOK},
		{"GET /i18n", http.MethodGet, "/i18n", http.StatusOK},
		{"GET /i18n/bm", http.MethodGet, "/i18n/bm", http.StatusOK},
		{"GET /api/v1/plans", http.MethodGet, "/api/v1/plans?x=1", http.StatusOK},
		{"POST /api/login", http.MethodPost, "/api/login", http.StatusOK},
		{"GET /metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"GET / serves index", http.MethodGet, "/", http.StatusOK},
		{"GET /login.html", http.MethodGet, "/login.html", http.StatusOK},
		{"GET /unknown.html", http.MethodGet, "/unknown.html", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
