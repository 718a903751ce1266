// Package service implements the same-origin /api forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"pf-studio/internal/apibase"
	"pf-studio/internal/client"
	"pf-studio/internal/config"
	"pf-studio/internal/model"
)

// ErrProxyLoop is returned when the resolved origin is the site's own /api
// path, so forwarding would call this host again.
var ErrProxyLoop = errors.New("api proxy disabled: api base points back at this site")

// Prefix is the site path the proxy is mounted on.
const Prefix = "/api"

// forwardableRequestHeaders are the only request headers forwarded to the backend.
var forwardableRequestHeaders = []string{
	"Accept",
	"Accept-Encoding",
	"Accept-Language",
	"Authorization",
	"Content-Type",
	"Content-Length",
	"Cookie",
	"X-Admin-Password",
	"X-Request-Id",
}

// forwardableResponseHeaders are the only response headers returned to the browser.
var forwardableResponseHeaders = map[string]bool{
	"Content-Type":     true,
	"Content-Length":   true,
	"Content-Encoding": true,
	"Cache-Control":    true,
	"Date":             true,
	"Set-Cookie":       true,
	"X-Request-Id":     true,
}

const userAgent = "pf-studio/1.0"

// ProxyService forwards browser requests under /api to the resolved backend origin.
type ProxyService struct {
	client   *client.Client
	fallback string
	logger   *slog.Logger
}

// NewProxyService creates a ProxyService. cfg supplies the site origin used
// to detect a proxy loop.
func NewProxyService(c *client.Client, cfg *config.Config, logger *slog.Logger) *ProxyService {
	fallback, _ := apibase.Normalize(cfg.Site.Origin + apibase.FallbackPath)
	return &ProxyService{
		client:   c,
		fallback: fallback,
		logger:   logger.With("component", "proxy_service"),
	}
}

// Enabled reports whether forwarding is possible with the current runtime.
func (s *ProxyService) Enabled() bool {
	base := s.client.Runtime().APIBase()
	return base != "" && !strings.EqualFold(base, s.fallback)
}

// Forward sends a ProxyRequest to the backend and returns the response.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	base := s.client.Runtime().APIBase()
	if base == "" {
		return nil, apibase.ErrNoOrigin
	}
	if strings.EqualFold(base, s.fallback) {
		return nil, ErrProxyLoop
	}

	target, err := s.client.URL(s.backendPath(pr), "")
	if err != nil {
		return nil, err
	}
	header := s.filterRequestHeaders(pr.Header)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
	)

	resp, err := s.client.Forward(pr.Ctx, pr.Method, target, header, pr.Body)
	if err != nil {
		return nil, fmt.Errorf("forward to backend: %w", err)
	}

	resp.Header = s.filterResponseHeaders(resp.Header)
	return resp, nil
}

// backendPath strips the mount prefix and re-attaches the query string.
// Legacy aliases are applied when the client builds the URL.
func (s *ProxyService) backendPath(pr *model.ProxyRequest) string {
	path := strings.TrimPrefix(pr.Path, Prefix)
	if path == "" {
		path = "/"
	}
	if len(pr.Query) > 0 {
		path += "?" + pr.Query.Encode()
	}
	return path
}

func (s *ProxyService) filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	dst.Set("User-Agent", userAgent)
	return dst
}

func (s *ProxyService) filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[key] = vals
		}
	}
	return dst
}
