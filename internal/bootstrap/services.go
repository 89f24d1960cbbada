package bootstrap

import (
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	infrahttp "github.com/onronder/p-958660-sub000/infrastructure/http"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/config"
	"github.com/onronder/p-958660-sub000/internal/credentials"
	"github.com/onronder/p-958660-sub000/internal/dependent"
	"github.com/onronder/p-958660-sub000/internal/events"
	"github.com/onronder/p-958660-sub000/internal/extraction"
	"github.com/onronder/p-958660-sub000/internal/metrics"
	"github.com/onronder/p-958660-sub000/internal/preview"
	"github.com/onronder/p-958660-sub000/internal/query"
	"github.com/onronder/p-958660-sub000/internal/repository"
	"github.com/onronder/p-958660-sub000/internal/shopify"
	"github.com/onronder/p-958660-sub000/internal/tasks"
	"github.com/onronder/p-958660-sub000/internal/templates"
)

// SetupDeadLetters keeps dead letters in Redis when a client is available;
// otherwise they are only logged.
func SetupDeadLetters(rdb *redis.Client, log infralogger.Logger) tasks.DeadLetterStore {
	if rdb != nil {
		return tasks.NewRedisSink(rdb, log)
	}
	return tasks.NewLogSink(log)
}

// SetupQueue builds the background queue.
func SetupQueue(cfg config.ExtractionConfig, sink tasks.DeadLetterSink, m *metrics.Metrics, log infralogger.Logger) *tasks.Queue {
	return tasks.New(tasks.Config{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		TaskTimeout: cfg.TaskTimeout,
	}, sink, log, tasks.WithObserver(m.ObserveTask, m.SetQueueDepth))
}

// SetupShopify builds the upstream client with its pooled transport.
func SetupShopify(cfg config.ShopifyConfig, m *metrics.Metrics, log infralogger.Logger) *shopify.Client {
	return shopify.NewClient(shopify.Config{
		BaseURL:         cfg.BaseURL,
		APIVersion:      cfg.APIVersion,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}, infrahttp.NewClient(infrahttp.ClientConfig{}), log, shopify.WithObserver(m.ObserveUpstream))
}

// SetupExtraction wires the repositories, resolvers and upstream client into
// the extraction service.
func SetupExtraction(
	cfg *config.Config,
	db *sqlx.DB,
	rdb *redis.Client,
	catalog *templates.Catalog,
	queue *tasks.Queue,
	m *metrics.Metrics,
	log infralogger.Logger,
) *extraction.Service {
	orchestrator := dependent.NewOrchestrator(cfg.Extraction.DependentConcurrency, log,
		dependent.WithSecondaryFailureHook(m.SecondaryFailed))

	return extraction.NewService(extraction.Config{
		APIVersion:        cfg.Shopify.APIVersion,
		FullTimeout:       cfg.Extraction.FullTimeout,
		PreviewTimeout:    cfg.Extraction.PreviewTimeout,
		ConnectionTimeout: cfg.Extraction.ConnectionTimeout,
		MaxPreviewBytes:   cfg.Extraction.MaxPreviewBytes,
	}, extraction.Deps{
		Sources:     repository.NewSourceRepository(db),
		Extractions: repository.NewExtractionRepository(db),
		OpLogs:      repository.NewOperationLogRepository(db),
		Resolver:    credentials.NewResolver(repository.NewCredentialRepository(db)),
		Preparer:    query.NewPreparer(templates.NewRegistry(catalog, repository.NewTemplateRepository(db))),
		Upstream:    SetupShopify(cfg.Shopify, m, log),
		Dependent:   orchestrator,
		Tasks:       queue,
		Events:      events.NewPublisher(rdb, log),
		Metrics:     m,
		Log:         log,
	})
}

// SetupPreviews builds the preview coordinator with Redis-backed sessions and
// template lookups when Redis is available.
func SetupPreviews(
	cfg config.PreviewConfig,
	db *sqlx.DB,
	rdb *redis.Client,
	svc *extraction.Service,
	m *metrics.Metrics,
	log infralogger.Logger,
) *preview.Coordinator {
	var store preview.StateStore = preview.NewMemoryStore()
	if rdb != nil {
		store = preview.NewRedisStore(rdb, cfg.SessionTTL)
	}
	reader := templates.NewCachedReader(repository.NewTemplateRepository(db), rdb, cfg.TemplateCacheTTL, log)
	return preview.NewCoordinator(svc, reader, store, log, preview.WithRecorder(m))
}
