// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/pf-studio/config.toml",
	"configs/config.toml",
}

// CLI holds the global command-line flags parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	APIBase  string `kong:"name='api-base',help='Backend origin injected by the hosting environment (overrides config).',env='PF_API_BASE'"`
	State    string `kong:"help='Path of the persisted state file (overrides config).',env='PF_STATE_PATH'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Site     SiteConfig     `toml:"site"`
	API      APIConfig      `toml:"api"`
	State    StateConfig    `toml:"state"`
	Activity ActivityConfig `toml:"activity"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds settings for the static site host.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// SiteConfig describes the front-end being served and patched.
type SiteConfig struct {
	Root            string   `toml:"root"`
	Origin          string   `toml:"origin"` // origin the pages are served from; drives the same-origin fallback
	Index           string   `toml:"index"`  // page whose pf:apiBase meta tag feeds the resolver
	ProductionHosts []string `toml:"production_hosts"`
	HTMLFiles       []string `toml:"html_files"`
}

// APIConfig holds backend API settings.
type APIConfig struct {
	Base            string   `toml:"base"` // value injected by the hosting environment
	EnvVars         []string `toml:"env_vars"`
	TimeoutSeconds  int      `toml:"timeout_seconds"` // 0 leaves the transport default (no client timeout)
	IdleConnections int      `toml:"idle_connections"`
}

// StateConfig selects the persisted key-value store.
type StateConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// ActivityConfig holds admin activity-log viewer settings.
type ActivityConfig struct {
	PageSize int `toml:"page_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// defaultHTMLFiles are the pages the deploy tools touch when none are configured.
var defaultHTMLFiles = []string{
	"login.html",
	"register.html",
	"chatroom.html",
	"admin.html",
	"dashboard.html",
	"pricing.html",
	"payment-success.html",
	"index.html",
	"privacy.html",
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/pf-studio/config.toml then configs/config.toml and falls back to the
// built-in defaults when neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.APIBase != "" {
		c.API.Base = cli.APIBase
	}
	if cli.State != "" {
		c.State.Path = cli.State
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Site.Origin != "" {
		u, err := url.Parse(c.Site.Origin)
		if err != nil {
			return fmt.Errorf("site.origin is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("site.origin must use http or https; got %q", c.Site.Origin)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must be non-negative; got %d", c.API.TimeoutSeconds)
	}
	if c.API.IdleConnections < 0 {
		return fmt.Errorf("api.idle_connections must be non-negative; got %d", c.API.IdleConnections)
	}
	if c.Activity.PageSize < 0 {
		return fmt.Errorf("activity.page_size must be non-negative; got %d", c.Activity.PageSize)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	switch strings.ToLower(c.State.Driver) {
	case "file", "sqlite", "memory", "":
	default:
		return fmt.Errorf("state.driver must be one of: file, sqlite, memory; got %q", c.State.Driver)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range ReservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// ReservedRoutes are the site host's own routes; static files and the metrics
// endpoint cannot shadow them.
var ReservedRoutes = []string{"/api", "/healthz", "/ping", "/site/status", "/runtime-config.js", "/i18n"}

// setDefaults fills zero-valued fields with sensible defaults.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Site.Root == "" {
		c.Site.Root = "public"
	}
	if c.Site.Origin == "" {
		c.Site.Origin = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Site.Origin = strings.TrimRight(c.Site.Origin, "/")
	if c.Site.Index == "" {
		c.Site.Index = "index.html"
	}
	if len(c.Site.HTMLFiles) == 0 {
		c.Site.HTMLFiles = append([]string(nil), defaultHTMLFiles...)
	}
	if len(c.API.EnvVars) == 0 {
		c.API.EnvVars = []string{"NEXT_PUBLIC_API_BASE", "VITE_API_BASE"}
	}
	if c.API.IdleConnections == 0 {
		c.API.IdleConnections = 100
	}
	if c.State.Driver == "" {
		c.State.Driver = "file"
	}
	c.State.Driver = strings.ToLower(c.State.Driver)
	if c.State.Path == "" && c.State.Driver != "memory" {
		c.State.Path = defaultStatePath(c.State.Driver)
	}
	if c.Activity.PageSize == 0 {
		c.Activity.PageSize = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func defaultStatePath(driver string) string {
	name := "state.toml"
	if driver == "sqlite" {
		name = "state.db"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "pf-studio", name)
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProductionHost reports whether host (with or without a port) is one of
// the configured production domains.
func (c *SiteConfig) IsProductionHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, p := range c.ProductionHosts {
		if strings.EqualFold(strings.TrimSpace(p), host) {
			return true
		}
	}
	return false
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
