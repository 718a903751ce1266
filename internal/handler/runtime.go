package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"pf-studio/internal/apibase"
	"pf-studio/internal/config"
)

// RuntimeHandler emits the frozen runtime configuration script pages load
// before any other script.
type RuntimeHandler struct {
	runtime *apibase.Runtime
	site    *config.SiteConfig
	logger  *slog.Logger
}

// NewRuntimeHandler creates a RuntimeHandler.
func NewRuntimeHandler(rt *apibase.Runtime, cfg *config.Config, logger *slog.Logger) *RuntimeHandler {
	return &RuntimeHandler{
		runtime: rt,
		site:    &cfg.Site,
		logger:  logger.With("component", "runtime_config"),
	}
}

type runtimeObject struct {
	APIBase string `json:"API_BASE"`
	Source  string `json:"SOURCE"`
}

// Script serves window.__PF_RUNTIME__. Outside production hosts a query
// override (?pf_api_base= or ?apiBase=) replaces a startup origin only when
// that origin came from a weaker source than the query string.
func (h *RuntimeHandler) Script(c echo.Context) error {
	obj := runtimeObject{APIBase: h.runtime.APIBase(), Source: h.runtime.Source()}
	querySource := apibase.Query(c.QueryParams())

	if !h.site.IsProductionHost(c.Request().Host) && !apibase.Outranks(obj.Source, querySource.Name) {
		if raw := querySource.Lookup(); raw != "" {
			if v, ok := apibase.Normalize(raw); ok {
				obj = runtimeObject{APIBase: v, Source: querySource.Name}
			} else {
				h.logger.Warn("ignoring unusable api base override", "value", raw)
			}
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode runtime config: %w", err)
	}

	script := fmt.Sprintf("window.__PF_RUNTIME__ = Object.freeze(%s);\n", data)
	if obj.APIBase == "" {
		script += "console.error(\"[pf] API base is not configured for this host\");\n"
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", []byte(script))
}
