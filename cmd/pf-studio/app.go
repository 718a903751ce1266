package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/fx"

	"pf-studio/internal/apibase"
	"pf-studio/internal/client"
	"pf-studio/internal/config"
	"pf-studio/internal/i18n"
	"pf-studio/internal/metrics"
	"pf-studio/internal/project"
	"pf-studio/internal/store"
)

// coreModule provides everything the commands share. fx only builds what a
// command asks for, so `lang get` never resolves an origin and `resolve`
// never opens a connection.
func coreModule(g *config.CLI) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.CLI { return g },
			config.Load,
			newLogger,
			metrics.New,
			newStore,
			newRuntime,
			newClient,
			newProjectCache,
			i18n.Load,
			i18n.NewPreference,
		),
	)
}

// withApp builds the graph, fills targets, runs fn and tears the graph down.
func withApp(g *config.CLI, fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		fx.NopLogger,
		coreModule(g),
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// newLogger writes to stderr so command output on stdout stays clean.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	default:
		h = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(h)
}

func newStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("state store opened", "driver", cfg.State.Driver, "path", cfg.State.Path)
	lc.Append(fx.StopHook(st.Close))
	return st, nil
}

// newRuntime resolves the API origin once per process. An unresolved origin
// is logged by the resolver and leaves the runtime empty; callers decide
// whether that is fatal.
func newRuntime(cfg *config.Config, st store.Store, logger *slog.Logger, m *metrics.Metrics) *apibase.Runtime {
	rt, _ := apibase.Resolve(context.Background(), cfg, st, logger, m)
	return rt
}

func newClient(lc fx.Lifecycle, cfg *config.Config, rt *apibase.Runtime, st store.Store, logger *slog.Logger, m *metrics.Metrics) (*client.Client, error) {
	c, err := client.New(cfg, rt, st, logger, m)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(c.CloseIdleConnections))
	return c, nil
}

func newProjectCache(c *client.Client, st store.Store, logger *slog.Logger) *project.Cache {
	return project.New(c, st, logger)
}
