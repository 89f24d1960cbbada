package bootstrap

import (
	"context"
	"fmt"
	"time"

	infragin "github.com/onronder/p-958660-sub000/infrastructure/gin"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/infrastructure/profiling"
	"github.com/onronder/p-958660-sub000/internal/api"
)

const drainTimeout = 30 * time.Second

// SetupHTTPServer creates the HTTP server for app.
func SetupHTTPServer(app *App) *infragin.Server {
	cfg := app.Config

	checks := map[string]infragin.HealthCheck{
		"database": app.DB.Ping,
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}

	handler := api.NewHandler(app.Extractor, app.Previews, app.Log,
		api.WithCatalog(app.Templates),
		api.WithDeadLetters(app.DeadLetters),
	)
	return infragin.NewServer(infragin.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Debug:        cfg.Debug,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORS: infragin.CORSConfig{
			AllowedOrigins: cfg.Server.CORSOrigins,
		},
		ServiceName:    ServiceName,
		ServiceVersion: Version,
	}, app.Log, api.Routes(handler, api.RouterConfig{
		ServiceName: ServiceName,
		Version:     Version,
		Metrics:     app.Metrics.Handler(),
		Checks:      checks,
		Observe:     app.Metrics.ObserveHTTP,
	}))
}

// Serve loads configuration from configPath and runs the HTTP API until ctx
// ends or a shutdown signal arrives. debug overrides the configured flag.
func Serve(ctx context.Context, configPath string, debug bool) error {
	// Phase 0: config and logger
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Debug = cfg.Debug || debug
	log, err := CreateLogger(cfg, Version)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if pprofServer := profiling.Start(cfg.Profiling, log); pprofServer != nil {
		defer func() { _ = pprofServer.Close() }()
	}

	// Phase 1-3: components
	app, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		if closeErr := app.Close(drainCtx); closeErr != nil {
			log.Error("Failed to shut down cleanly", infralogger.Error(closeErr))
		}
	}()

	// Phase 4: HTTP
	server := SetupHTTPServer(app)
	if runErr := server.Run(ctx); runErr != nil {
		log.Error("Server error", infralogger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}
