package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/otel/metric"

	"gameservices/adapters/jsonfile"
	mem "gameservices/adapters/memory"
	redisAdapter "gameservices/adapters/redis"
	"gameservices/api/httpapi"
	"gameservices/config"
	"gameservices/core"
	"gameservices/engine"
	"gameservices/gameservices"
	"gameservices/integrations/webhook"
	"gameservices/platform"
	"gameservices/plugin"
	"gameservices/realtime"
	"gameservices/script"
	"gameservices/telemetry"
)

// ConfigPath is an optional JSON or YAML file layered under the environment.
type ConfigPath string

// App aggregates the assembled host components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Platform platform.Platform
	Loop     *engine.MainLoop
	Host     *script.Host
	Plugin   *plugin.Plugin
	Hub      *realtime.Hub
	Webhook  *webhook.Sink
	// Relay moves signal consumers off the engine goroutine.
	Relay  *engine.EventBus
	Server *http.Server
}

func provideConfig(ctx context.Context, path ConfigPath) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(string(path))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideMeterProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metric.MeterProvider, func(), error) {
	mp, shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
	return mp, cleanup, nil
}

func provideMetrics(mp metric.MeterProvider) *telemetry.Metrics {
	return telemetry.NewMetrics(mp.Meter(telemetry.MeterName))
}

func providePlatform(ctx context.Context, cfg *config.Config, logger *slog.Logger) (platform.Platform, func(), error) {
	return setupPlatform(ctx, cfg, logger)
}

func provideLoop(logger *slog.Logger) *engine.MainLoop {
	return engine.NewMainLoop(logger)
}

func provideHost(loop *engine.MainLoop, logger *slog.Logger) *script.Host {
	return script.NewHost(loop, script.WithLogger(logger))
}

func providePlugin(cfg *config.Config, p platform.Platform, logger *slog.Logger, metrics *telemetry.Metrics) *plugin.Plugin {
	return plugin.New(p, logger,
		gameservices.WithMetrics(metrics),
		gameservices.WithMaxPageSize(cfg.Bridge.MaxPageSize),
		gameservices.WithAvatarMaxSize(cfg.Bridge.AvatarMaxSize),
	)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideWebhook(cfg *config.Config, logger *slog.Logger) (*webhook.Sink, func()) {
	sink := webhook.New(cfg.Webhook.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
		webhook.WithTypes(cfg.Webhook.EventTypes()...),
		webhook.WithLogger(logger),
	)
	return sink, sink.Close
}

func provideRelay(logger *slog.Logger) (*engine.EventBus, func()) {
	relay := engine.NewEventBus(engine.DispatchAsync, engine.WithBusLogger(logger))
	return relay, relay.Close
}

func provideServer(cfg *config.Config, pl *plugin.Plugin, hub *realtime.Hub, logger *slog.Logger) *http.Server {
	if !cfg.Debug.Enabled {
		return nil
	}
	handler := httpapi.NewMux(pl, hub, httpapi.Options{
		PathPrefix:       cfg.Debug.PathPrefix,
		AllowCORSOrigin:  cfg.Debug.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Logger:           logger,
	})
	return &http.Server{
		Addr:              cfg.Debug.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Debug.ReadHeaderTimeout,
		ReadTimeout:       cfg.Debug.ReadTimeout,
		WriteTimeout:      cfg.Debug.WriteTimeout,
		IdleTimeout:       cfg.Debug.IdleTimeout,
	}
}

// routeSignals fans every bridge signal out to the debug stream and the webhooks.
func (a *App) routeSignals() func() {
	offs := []func(){
		a.Relay.SubscribeAll(a.Hub.Broadcast),
		a.Relay.SubscribeAll(a.Webhook.OnEvent),
		a.Plugin.Bus().SubscribeAll(a.Relay.Publish),
	}
	return func() {
		for i := len(offs) - 1; i >= 0; i-- {
			offs[i]()
		}
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}
	logger := newLogger(out, cfg.Logging)
	slog.SetDefault(logger)
	return logger
}

func newLogger(out io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}

	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Attributes))
	}
	return slog.New(handler)
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

// setupPlatform creates the platform backend named by configuration. The cleanup
// persists simulated state when asked and releases the backend.
func setupPlatform(ctx context.Context, cfg *config.Config, logger *slog.Logger) (platform.Platform, func(), error) {
	pc := cfg.Platform
	local := core.Player{ID: core.PlayerID(pc.LocalPlayer), DisplayName: pc.LocalPlayerName, Alias: pc.LocalPlayerName}

	switch pc.Backend {
	case config.BackendMemory, config.BackendFile:
		opts := []mem.Option{mem.WithLatency(pc.Latency)}
		if pc.Name != "" {
			opts = append(opts, mem.WithName(pc.Name))
		}
		if local.ID != "" {
			opts = append(opts, mem.WithLocalPlayer(local))
		}
		if pc.FixturePath == "" {
			p := mem.New(opts...)
			return p, p.Close, nil
		}
		store := jsonfile.New(pc.FixturePath)
		p, err := store.Open(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open fixture %s: %w", pc.FixturePath, err)
		}
		persist := pc.PersistOnExit || pc.Backend == config.BackendFile
		cleanup := func() {
			p.Close()
			if !persist {
				return
			}
			if err := store.Persist(p); err != nil {
				logger.Error("failed to persist platform state", "path", store.Path(), "error", err)
				return
			}
			logger.Info("platform state persisted", "path", store.Path())
		}
		return p, cleanup, nil

	case config.BackendRedis:
		var opts []redisAdapter.Option
		if pc.Name != "" {
			opts = append(opts, redisAdapter.WithName(pc.Name))
		}
		if local.ID != "" {
			opts = append(opts, redisAdapter.WithLocalPlayer(local.ID))
		}
		p, err := redisAdapter.New(ctx, pc.Redis, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis platform: %w", err)
		}
		if local.ID != "" {
			if err := p.AddPlayer(ctx, local); err != nil {
				_ = p.Close()
				return nil, nil, fmt.Errorf("register local player: %w", err)
			}
		}
		if pc.FixturePath != "" && cfg.Environment != config.EnvProduction {
			f, err := jsonfile.New(pc.FixturePath).Load()
			if err == nil {
				err = p.Seed(ctx, f)
			}
			if err != nil {
				_ = p.Close()
				return nil, nil, fmt.Errorf("seed redis platform: %w", err)
			}
		}
		cleanup := func() {
			if err := p.Close(); err != nil {
				logger.Warn("redis platform close failed", "error", err)
			}
		}
		return p, cleanup, nil

	case config.BackendUnavailable:
		return platform.Unavailable{}, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown platform backend: %s", pc.Backend)
	}
}
