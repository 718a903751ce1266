package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pf-studio/internal/apibase"
	"pf-studio/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	runtime *apibase.Runtime
	proxy   *service.ProxyService
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(rt *apibase.Runtime, proxy *service.ProxyService, v Version) *HealthHandler {
	return &HealthHandler{runtime: rt, proxy: proxy, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ping answers with plain text.
func (h *HealthHandler) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

type statusResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	APIBase      string `json:"api_base"`
	Source       string `json:"source"`
	ProxyEnabled bool   `json:"proxy_enabled"`
}

// Status reports the build version and the resolved API origin. An
// unresolved origin makes the site degraded rather than down.
func (h *HealthHandler) Status(c echo.Context) error {
	resp := statusResponse{
		Status:       "ok",
		Version:      string(h.version),
		APIBase:      h.runtime.APIBase(),
		Source:       h.runtime.Source(),
		ProxyEnabled: h.proxy != nil && h.proxy.Enabled(),
	}
	if !h.runtime.Resolved() {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}
