// Package bootstrap handles application initialization and lifecycle management
// for the extractor service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/config"
	"github.com/onronder/p-958660-sub000/internal/database"
	"github.com/onronder/p-958660-sub000/internal/extraction"
	"github.com/onronder/p-958660-sub000/internal/metrics"
	"github.com/onronder/p-958660-sub000/internal/preview"
	"github.com/onronder/p-958660-sub000/internal/tasks"
	"github.com/onronder/p-958660-sub000/internal/templates"
)

// ServiceName is reported in logs and the health endpoint.
const ServiceName = "extractor"

// Version is overridden at build time with -ldflags "-X ...bootstrap.Version=...".
var Version = "dev"

// App holds the long-lived components of a running extractor.
type App struct {
	Config      *config.Config
	Log         infralogger.Logger
	DB          *database.DB
	Redis       *redis.Client
	Metrics     *metrics.Metrics
	Queue       *tasks.Queue
	DeadLetters tasks.DeadLetterStore
	Templates   *templates.Catalog
	Extractor   *extraction.Service
	Previews    *preview.Coordinator
}

// New connects to the database and Redis and wires every component. The
// background queue is started; Close drains it.
func New(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*App, error) {
	// Phase 1: storage
	db, err := database.New(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	rdb := SetupRedis(ctx, cfg.Redis, log)

	// Phase 2: background work and metrics
	m := metrics.New()
	deadLetters := SetupDeadLetters(rdb, log)
	queue := SetupQueue(cfg.Extraction, deadLetters, m, log)

	// Phase 3: pipeline
	catalog, err := templates.Builtin()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load template catalog: %w", err)
	}
	svc := SetupExtraction(cfg, db.DB(), rdb, catalog, queue, m, log)
	previews := SetupPreviews(cfg.Preview, db.DB(), rdb, svc, m, log)

	if err = queue.Start(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("start task queue: %w", err)
	}

	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Redis:       rdb,
		Metrics:     m,
		Queue:       queue,
		DeadLetters: deadLetters,
		Templates:   catalog,
		Extractor:   svc,
		Previews:    previews,
	}, nil
}

// Close drains the queue within ctx and closes the connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Queue.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop task queue: %w", err))
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
