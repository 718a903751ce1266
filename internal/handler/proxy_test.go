package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"pf-studio/internal/apibase"
	"pf-studio/internal/client"
	"pf-studio/internal/config"
	"pf-studio/internal/service"
	"pf-studio/internal/store"
)

const testSiteOrigin = "http://localhost:8000"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Site: config.SiteConfig{
			Origin:          testSiteOrigin,
			ProductionHosts: []string{"studio.example.com"},
		},
		API:     config.APIConfig{TimeoutSeconds: 10, IdleConnections: 10},
		Metrics: config.MetricsConfig{Path: "/metrics"},
	}
}

// newTestRuntime returns a Runtime pointing at base, or an unresolved one
// when base is empty.
func newTestRuntime(t *testing.T, base string) *apibase.Runtime {
	t.Helper()
	if base == "" {
		return &apibase.Runtime{}
	}
	rt, err := apibase.NewRuntime(base)
	if err != nil {
		t.Fatalf("NewRuntime(%q) error = %v", base, err)
	}
	return rt
}

// newTestProxyService builds the proxy service over a real client aimed at base.
func newTestProxyService(t *testing.T, cfg *config.Config, rt *apibase.Runtime) *service.ProxyService {
	t.Helper()
	c, err := client.New(cfg, rt, store.NewMemory(), discardLogger(), nil)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(c.CloseIdleConnections)
	return service.NewProxyService(c, cfg, discardLogger())
}

func TestProxyHandler_Handle(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/login" {
			t.Errorf("backend path = %q, want %q", r.URL.Path, "/v1/login")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Set-Cookie", "session=abc; Path=/")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer backend.Close()

	cfg := testConfig()
	h := NewProxyHandler(newTestProxyService(t, cfg, newTestRuntime(t, backend.URL)), discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.c"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("Set-Cookie was not passed through")
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["result"] != "ok" {
		t.Errorf("body.result = %q, want %q", body["result"], "ok")
	}
}

func TestProxyHandler_Handle_Errors(t *testing.T) {
	tests := []struct {
		name       string
		base       string
		wantStatus int
	}{
		{"unresolved origin", "", http.StatusServiceUnavailable},
		{"loop to own fallback", testSiteOrigin + "/api", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			h := NewProxyHandler(newTestProxyService(t, cfg, newTestRuntime(t, tt.base)), discardLogger())

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", http.NoBody)
			rec := httptest.NewRecorder()
			if err := h.Handle(e.NewContext(req, rec)); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected non-empty error message in response")
			}
		})
	}
}

func TestProxyHandler_Handle_CanceledContext(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer backend.Close()

	cfg := testConfig()
	h := NewProxyHandler(newTestProxyService(t, cfg, newTestRuntime(t, backend.URL)), discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", http.NoBody)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	if err := h.Handle(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestProxyHandler_Handle_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := testConfig()
	h := NewProxyHandler(newTestProxyService(t, cfg, newTestRuntime(t, "http://"+addr)), discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", http.NoBody)
	rec := httptest.NewRecorder()
	if err := h.Handle(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		err  string
		want string
	}{
		{
			name: "redacts token in URL",
			err:  `Get "https://api.example.com/v1/me?token=secret123&x=1": connection refused`,
			want: `Get "https://api.example.com/v1/me?token=[REDACTED]&x=1": connection refused`,
		},
		{
			name: "redacts password at end of URL",
			err:  `Get "https://api.example.com/admin?password=hunter2": EOF`,
			want: `Get "https://api.example.com/admin?password=[REDACTED]": EOF`,
		},
		{
			name: "nothing to redact",
			err:  "connection refused",
			want: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeError(fmt.Errorf("%s", tt.err))
			if got != tt.want {
				t.Errorf("sanitizeError() = %q, want %q", got, tt.want)
			}
		})
	}
}
