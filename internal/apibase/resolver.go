package apibase

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"

	"pf-studio/internal/config"
	"pf-studio/internal/metrics"
	"pf-studio/internal/store"
)

// ErrNoOrigin is returned when no source yields an origin on a production host.
var ErrNoOrigin = errors.New("api base unresolved on production host")

// FallbackPath is appended to the site origin for the same-origin fallback.
const FallbackPath = "/api"

// resolutionFailed is the process-wide misconfiguration flag.
var resolutionFailed atomic.Bool

// Failed reports whether any resolution in this process ended in ErrNoOrigin.
func Failed() bool { return resolutionFailed.Load() }

// Runtime is the resolved configuration shared by every outgoing request.
// It is immutable; Override returns a new value.
type Runtime struct {
	apiBase string
	source  string
}

// NewRuntime validates base and wraps it in a Runtime.
func NewRuntime(base string) (*Runtime, error) {
	v, ok := Normalize(base)
	if !ok {
		return nil, errors.New("apibase: origin must be an absolute http(s) URL outside the retired serverless domain")
	}
	return &Runtime{apiBase: v, source: "explicit"}, nil
}

// APIBase returns the origin without a trailing slash, or "" when unresolved.
func (r *Runtime) APIBase() string {
	if r == nil {
		return ""
	}
	return r.apiBase
}

// Source names the resolver source the origin came from.
func (r *Runtime) Source() string {
	if r == nil {
		return ""
	}
	return r.source
}

// Resolved reports whether the runtime carries an origin.
func (r *Runtime) Resolved() bool { return r.APIBase() != "" }

// Override returns a new Runtime pointing at base. r itself is left as is.
func (r *Runtime) Override(base string) (*Runtime, error) {
	return NewRuntime(base)
}

// Resolver walks an ordered list of sources and returns the first usable origin.
type Resolver struct {
	sources    []Source
	siteOrigin string
	production bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewResolver creates a Resolver. siteOrigin is where the pages are served
// from; production marks it as a recognized production domain. The metrics
// parameter is optional.
func NewResolver(siteOrigin string, production bool, logger *slog.Logger, m *metrics.Metrics, sources ...Source) *Resolver {
	return &Resolver{
		sources:    sources,
		siteOrigin: siteOrigin,
		production: production,
		logger:     logger.With("component", "apibase"),
		metrics:    m,
	}
}

// Resolve returns the first well-formed candidate. With nothing usable it
// falls back to the site's own /api path on non-production hosts; on a
// production host it logs an error, raises the Failed flag and returns an
// unresolved Runtime together with ErrNoOrigin.
func (r *Resolver) Resolve() (*Runtime, error) {
	for _, src := range r.sources {
		if src.DevOnly && r.production {
			continue
		}
		raw := src.Lookup()
		if raw == "" {
			continue
		}
		base, ok := Normalize(raw)
		if !ok {
			r.logger.Warn("ignoring unusable api base candidate", "source", src.Name, "value", raw)
			continue
		}
		r.record(src.Name)
		r.logger.Info("api base resolved", "source", src.Name, "api_base", base)
		return &Runtime{apiBase: base, source: src.Name}, nil
	}

	if !r.production {
		if base, ok := Normalize(r.siteOrigin + FallbackPath); ok {
			r.record("fallback")
			r.logger.Info("api base resolved", "source", "fallback", "api_base", base)
			return &Runtime{apiBase: base, source: "fallback"}, nil
		}
	}

	resolutionFailed.Store(true)
	r.record("unresolved")
	r.logger.Error("api base not configured; refusing same-origin fallback", "site_origin", r.siteOrigin)
	return &Runtime{}, ErrNoOrigin
}

func (r *Resolver) record(source string) {
	if r.metrics != nil {
		r.metrics.OriginResolutions.WithLabelValues(source).Inc()
	}
}

// DefaultSources is the standard priority list: hosting-injected value, the
// index page's meta tag, build-time environment variables, query string
// (nil outside a page request), then the persisted override.
func DefaultSources(ctx context.Context, cfg *config.Config, st store.Store, query url.Values) []Source {
	return []Source{
		Injected(cfg.API.Base),
		Meta(filepath.Join(cfg.Site.Root, cfg.Site.Index)),
		Env(cfg.API.EnvVars, os.LookupEnv),
		Query(query),
		Stored(ctx, st),
	}
}

// SiteIsProduction reports whether cfg.Site.Origin is a production domain.
func SiteIsProduction(cfg *config.Config) bool {
	u, err := url.Parse(cfg.Site.Origin)
	if err != nil {
		return false
	}
	return cfg.Site.IsProductionHost(u.Host)
}

// Resolve builds the default resolver from cfg and runs it once.
func Resolve(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger, m *metrics.Metrics) (*Runtime, error) {
	return NewResolver(cfg.Site.Origin, SiteIsProduction(cfg), logger, m,
		DefaultSources(ctx, cfg, st, nil)...).Resolve()
}
