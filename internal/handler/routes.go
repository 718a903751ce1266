package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"pf-studio/internal/config"
	"pf-studio/internal/metrics"
	"pf-studio/internal/middleware"
)

// Handlers groups the route handlers for injection.
type Handlers struct {
	fx.In

	Proxy   *ProxyHandler
	Health  *HealthHandler
	Runtime *RuntimeHandler
	I18n    *I18nHandler
}

// RegisterRoutes wires all route handlers onto the Echo instance. Anything
// not matched by a host route is served from the site root.
func RegisterRoutes(e *echo.Echo, h Handlers, cfg *config.Config, m *metrics.Metrics) {
	e.GET("/healthz", h.Health.Healthz)
	e.GET("/ping", h.Health.Ping)
	e.GET("/site/status", h.Health.Status, middleware.NoStore())
	e.GET("/runtime-config.js", h.Runtime.Script)
	e.GET("/i18n", h.I18n.Languages)
	e.GET("/i18n/:lang", h.I18n.Table)

	e.Any("/api", h.Proxy.Handle)
	e.Any("/api/*", h.Proxy.Handle)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Static("/", cfg.Site.Root)
}
