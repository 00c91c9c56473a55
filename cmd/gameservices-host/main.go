package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", os.Getenv("GAMESERVICES_CONFIG"), "optional JSON or YAML config file")
	scriptPath := flag.String("script", "", "script to run (overrides script.path)")
	flag.Parse()

	os.Exit(run(*configPath, *scriptPath))
}

func run(configPath, scriptPath string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx, ConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize host: %v\n", err)
		return 1
	}
	defer cleanup()

	cfg := app.Config
	if scriptPath != "" {
		cfg.Script.Path = scriptPath
	}
	logger := app.Logger

	logger.Info("starting gameservices host",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"platform", app.Platform.Name(),
		"backend", cfg.Platform.Backend,
		"script", cfg.Script.Path)
	logger.Debug("effective configuration", "config", cfg.String())

	unroute := app.routeSignals()
	defer unroute()

	// the loop is not running yet, so this goroutine is the engine thread
	if err := app.Plugin.Init(app.Host); err != nil {
		logger.Error("failed to register singleton", "error", err)
		return 1
	}

	if srv := app.Server; srv != nil {
		go func() {
			logger.Info("debug server listening", "address", srv.Addr, "prefix", cfg.Debug.PathPrefix)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("debug server failed", "error", err)
				stop()
			}
		}()
	}

	code := 0
	if _, err := app.Host.RunFile(cfg.Script.Path); err != nil {
		logger.Error("script failed", "path", cfg.Script.Path, "error", err)
		code = 1
	} else {
		runCtx := ctx
		if cfg.Script.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, cfg.Script.Timeout)
			defer cancel()
		}
		code = app.Host.Run(runCtx, cfg.Bridge.TickInterval)
	}

	shutdown(app, logger)
	logger.Info("host stopped", "exit_code", code)
	return code
}

// shutdown stops the debug server before the singleton goes away so no request waits on a stopped loop.
func shutdown(app *App, logger *slog.Logger) {
	if srv := app.Server; srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.Config.Debug.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("error during debug server shutdown", "error", err)
		}
	}
	app.Plugin.Deinit()
	app.Loop.Close()
}
