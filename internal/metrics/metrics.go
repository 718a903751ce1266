// Package metrics provides Prometheus metrics for the site host and the API client.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	APICallDuration *prometheus.HistogramVec
	APIResponses    *prometheus.CounterVec

	OriginResolutions *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pf_studio_http_requests_total",
			Help: "Total inbound HTTP requests served by the site host.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pf_studio_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pf_studio_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		APICallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pf_studio_api_call_duration_seconds",
			Help:    "Backend API call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		APIResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pf_studio_api_responses_total",
			Help: "Total backend API responses by method and status code.",
		}, []string{"method", "status_code"}),

		OriginResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pf_studio_origin_resolutions_total",
			Help: "API origin resolutions by winning source (fallback, unresolved included).",
		}, []string{"source"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.APICallDuration,
		m.APIResponses,
		m.OriginResolutions,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownPrefixes lists the allowed path label values (bounded cardinality).
var knownPrefixes = []string{"/api", "/healthz", "/ping", "/site/status", "/runtime-config.js", "/i18n", "/metrics"}

// NormalizePath returns a bounded path label. Anything that is not one of the
// host's own routes is a static asset.
func NormalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "static"
}
