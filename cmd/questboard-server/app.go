package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"questboard/adapters/jsonfile"
	mem "questboard/adapters/memory"
	redisAdapter "questboard/adapters/redis"
	sqlxAdapter "questboard/adapters/sqlx"
	"questboard/analytics"
	"questboard/api/httpapi"
	"questboard/auth"
	"questboard/config"
	"questboard/core"
	"questboard/engine"
	"questboard/gamify"
	"questboard/integrations/webhook"
	"questboard/leaderboard"
	"questboard/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Metrics *analytics.Metrics
	Service *engine.Service
	Handler http.Handler
	Server  *http.Server
}

func provideConfig() (*config.Config, error) {
	if path := os.Getenv("QUESTBOARD_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg, os.Stdout, os.Stderr)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideLeaderboard() leaderboard.Board {
	return leaderboard.NewSkipList()
}

// provideMetrics returns nil when analytics is disabled.
func provideMetrics(cfg *config.Config) *analytics.Metrics {
	if !cfg.Analytics.Enabled {
		return nil
	}
	return analytics.NewMetrics()
}

// provideWebhook returns nil when no endpoints are configured.
func provideWebhook(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	ic := cfg.Integrations
	if len(ic.Webhooks) == 0 {
		return nil
	}
	opts := []webhook.Option{
		webhook.WithClient(&http.Client{Timeout: ic.WebhookTimeout}),
		webhook.WithLogger(logger),
	}
	if ic.WebhookSecret != "" {
		opts = append(opts, webhook.WithSecret(ic.WebhookSecret))
	}
	if len(ic.WebhookEvents) > 0 {
		types := make([]core.EventType, 0, len(ic.WebhookEvents))
		for _, t := range ic.WebhookEvents {
			types = append(types, core.EventType(t))
		}
		opts = append(opts, webhook.WithTypes(types...))
	}
	return webhook.New(ic.Webhooks, opts...)
}

func provideStorage(cfg *config.Config, logger *slog.Logger) (engine.Storage, func(), error) {
	store, closer, err := setupStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if closer == nil {
			return
		}
		if err := closer.Close(); err != nil {
			logger.Error("closing storage", "adapter", cfg.Storage.Adapter, "error", err)
		}
	}
	return store, cleanup, nil
}

func provideAuth(cfg *config.Config, logger *slog.Logger) (*auth.Auth, error) {
	a, err := auth.New(auth.Config{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		TTL:        cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	if err != nil {
		return nil, err
	}
	if a.Ephemeral {
		logger.Warn("no jwt secret configured; tokens will not survive a restart")
	}
	return a, nil
}

func provideService(
	ctx context.Context,
	logger *slog.Logger,
	storage engine.Storage,
	board leaderboard.Board,
	hub *realtime.Hub,
	metrics *analytics.Metrics,
	sink *webhook.Sink,
) (*engine.Service, func(), error) {
	opts := []gamify.Option{
		gamify.WithStorage(storage),
		gamify.WithDispatchMode(engine.DispatchAsync),
		gamify.WithLogger(logger),
		gamify.WithLeaderboard(board),
		gamify.WithRealtime(hub),
		gamify.WithWebhook(sink),
	}
	if metrics != nil {
		opts = append(opts, gamify.WithAnalytics(metrics))
	}
	svc := gamify.New(opts...)
	if err := svc.SeedLeaderboard(ctx); err != nil {
		svc.Close()
		return nil, nil, fmt.Errorf("seed leaderboard: %w", err)
	}
	return svc, svc.Close, nil
}

func provideHandler(cfg *config.Config, logger *slog.Logger, svc *engine.Service, a *auth.Auth, hub *realtime.Hub, metrics *analytics.Metrics) http.Handler {
	return httpapi.NewMux(httpapi.Deps{
		Service: svc,
		Auth:    a,
		Hub:     hub,
		Metrics: metrics,
	}, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		EnableDebug:      cfg.Security.EnableDebug,
		AdminKeys:        cfg.Security.AdminKeys,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *slog.Logger {
	var handler slog.Handler

	out := stdout
	if cfg.Logging.Output == "stderr" {
		out = stderr
	}
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter named by configuration. The
// closer is nil for adapters without connections.
func setupStorage(cfg *config.Config) (engine.Storage, io.Closer, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
