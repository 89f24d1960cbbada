// Package extraction runs previews and persisted full extractions: it loads
// the source, resolves credentials, prepares the query, calls Shopify,
// normalizes the rows and records the outcome.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	infraevents "github.com/onronder/p-958660-sub000/infrastructure/events"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/dependent"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/query"
	"github.com/onronder/p-958660-sub000/internal/repository"
	"github.com/onronder/p-958660-sub000/internal/shopify"
	"github.com/onronder/p-958660-sub000/internal/tasks"
)

// Run modes, used for metrics and operation logs.
const (
	ModePreview          = "preview"
	ModeFull             = "full"
	ModeDependentPreview = "dependent_preview"
	ModeDependent        = "dependent"
	ModePreviewData      = "preview_data"
	ModeConnectionTest   = "connection_test"
)

const sampleSize = 3

type SourceStore interface {
	GetByID(ctx context.Context, id string) (*models.Source, error)
}

type ExtractionStore interface {
	Create(ctx context.Context, e *models.Extraction) error
	GetByID(ctx context.Context, id string) (*models.Extraction, error)
	Transition(ctx context.Context, id string, upd models.StatusUpdate) error
}

type OperationLogStore interface {
	Insert(ctx context.Context, entry *models.OperationLog) error
}

type CredentialResolver interface {
	Resolve(ctx context.Context, src *models.Source) (*models.CredentialBundle, error)
}

type QueryPreparer interface {
	Prepare(ctx context.Context, req query.Request) (*query.Prepared, error)
}

// Upstream is the subset of *shopify.Client the service calls.
type Upstream interface {
	Execute(ctx context.Context, req shopify.Request) (*shopify.Response, error)
	TestConnection(ctx context.Context, shop, token, version string, timeout time.Duration) (string, error)
	Get(ctx context.Context, req shopify.RESTRequest) (json.RawMessage, error)
}

type TaskQueue interface {
	Enqueue(t tasks.Task) error
}

type EventPublisher interface {
	PublishAsync(event infraevents.ExtractionEvent)
}

type Recorder interface {
	ObserveExtraction(mode, status string)
}

// Config holds the per-call limits.
type Config struct {
	APIVersion        string
	FullTimeout       time.Duration
	PreviewTimeout    time.Duration
	ConnectionTimeout time.Duration
	MaxPreviewBytes   int
}

// Deps are the collaborators of a Service. Events and Metrics may be nil.
type Deps struct {
	Sources     SourceStore
	Extractions ExtractionStore
	OpLogs      OperationLogStore
	Resolver    CredentialResolver
	Preparer    QueryPreparer
	Upstream    Upstream
	Dependent   *dependent.Orchestrator
	Tasks       TaskQueue
	Events      EventPublisher
	Metrics     Recorder
	Log         infralogger.Logger
}

type Service struct {
	cfg Config
	Deps
	now func() time.Time
}

func NewService(cfg Config, deps Deps) *Service {
	if cfg.APIVersion == "" {
		cfg.APIVersion = shopify.DefaultAPIVersion
	}
	if cfg.FullTimeout <= 0 {
		cfg.FullTimeout = 30 * time.Second
	}
	if cfg.PreviewTimeout <= 0 {
		cfg.PreviewTimeout = 15 * time.Second
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 5 * time.Second
	}
	if cfg.MaxPreviewBytes <= 0 {
		cfg.MaxPreviewBytes = 1 << 20
	}
	if deps.Log == nil {
		deps.Log = infralogger.NewNop()
	}
	return &Service{cfg: cfg, Deps: deps, now: time.Now}
}

// loadSource resolves the source and its credentials.
func (s *Service) loadSource(ctx context.Context, sourceID string) (*models.Source, *models.CredentialBundle, error) {
	src, err := s.source(ctx, sourceID)
	if err != nil {
		return nil, nil, err
	}
	bundle, err := s.Resolver.Resolve(ctx, src)
	if err != nil {
		return src, nil, err
	}
	return src, bundle, nil
}

func (s *Service) source(ctx context.Context, sourceID string) (*models.Source, error) {
	src, err := s.Sources.GetByID(ctx, sourceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Newf(apperr.CodeSourceNotFound, "Source %s not found", sourceID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnexpected, "Failed to load source", err)
	}
	return src, nil
}

// execFunc binds upstream calls to one credential bundle and timeout.
func (s *Service) execFunc(bundle *models.CredentialBundle, timeout time.Duration) dependent.QueryFunc {
	return func(ctx context.Context, q string, vars map[string]any) (json.RawMessage, error) {
		resp, err := s.Upstream.Execute(ctx, shopify.Request{
			ShopName:    bundle.StoreName,
			AccessToken: bundle.APIToken,
			Query:       q,
			Variables:   vars,
			APIVersion:  s.cfg.APIVersion,
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		return resp.Data, nil
	}
}

// Sample renders the first three records as indented JSON, or nil when
// there are none.
func Sample(records []models.Record) *string {
	if len(records) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(records[:min(sampleSize, len(records))], "", "  ")
	if err != nil {
		return nil
	}
	out := string(data)
	return &out
}

func (s *Service) logger(ctx context.Context) infralogger.Logger {
	return infralogger.FromContextOr(ctx, s.Log)
}

func (s *Service) observe(mode string, err error) {
	if s.Metrics == nil {
		return
	}
	status := string(models.StatusCompleted)
	if err != nil {
		status = string(models.StatusFailed)
	}
	s.Metrics.ObserveExtraction(mode, status)
}

func (s *Service) publish(event infraevents.ExtractionEvent) {
	if s.Events == nil {
		return
	}
	s.Events.PublishAsync(event)
}
