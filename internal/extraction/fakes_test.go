package extraction_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	infraevents "github.com/onronder/p-958660-sub000/infrastructure/events"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/credentials"
	"github.com/onronder/p-958660-sub000/internal/dependent"
	"github.com/onronder/p-958660-sub000/internal/extraction"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/query"
	"github.com/onronder/p-958660-sub000/internal/repository"
	"github.com/onronder/p-958660-sub000/internal/shopify"
	"github.com/onronder/p-958660-sub000/internal/tasks"
	"github.com/onronder/p-958660-sub000/internal/templates"
)

type sourceStore map[string]*models.Source

func (s sourceStore) GetByID(_ context.Context, id string) (*models.Source, error) {
	src, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, repository.ErrNotFound)
	}
	return src, nil
}

type noSharedCredentials struct{}

func (noSharedCredentials) GetSharedCredential(context.Context, string) (*models.SharedCredential, error) {
	return nil, repository.ErrNotFound
}

// extractionStore enforces the same conditional update as the SQL repository.
type extractionStore struct {
	mu      sync.Mutex
	rows    map[string]*models.Extraction
	history map[string][]models.ExtractionStatus
}

func newExtractionStore() *extractionStore {
	return &extractionStore{
		rows:    map[string]*models.Extraction{},
		history: map[string][]models.ExtractionStatus{},
	}
}

func (s *extractionStore) Create(_ context.Context, e *models.Extraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Status = models.StatusPending
	cp := *e
	s.rows[e.ID] = &cp
	s.history[e.ID] = []models.ExtractionStatus{models.StatusPending}
	return nil
}

func (s *extractionStore) GetByID(_ context.Context, id string) (*models.Extraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("extraction %s: %w", id, repository.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *extractionStore) Transition(_ context.Context, id string, upd models.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok || models.ValidateStatusTransition(e.Status, upd.Status) != nil {
		return fmt.Errorf("extraction %s: %w", id, repository.ErrStaleStatus)
	}
	e.Status = upd.Status
	if upd.Progress != nil {
		e.Progress = *upd.Progress
	}
	if upd.StatusMessage != nil {
		e.StatusMessage = upd.StatusMessage
	}
	if upd.ResultData != nil {
		e.ResultData = upd.ResultData
	}
	if upd.RecordCount != nil {
		e.RecordCount = *upd.RecordCount
	}
	if upd.StartedAt != nil {
		e.StartedAt = upd.StartedAt
	}
	if upd.CompletedAt != nil {
		e.CompletedAt = upd.CompletedAt
	}
	s.history[id] = append(s.history[id], upd.Status)
	return nil
}

func (s *extractionStore) only(t *testing.T) (*models.Extraction, []models.ExtractionStatus) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.rows, 1)
	for id, e := range s.rows {
		return e, s.history[id]
	}
	return nil, nil
}

type opLogStore struct {
	mu      sync.Mutex
	entries []*models.OperationLog
}

func (s *opLogStore) Insert(_ context.Context, e *models.OperationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *opLogStore) all() []*models.OperationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.OperationLog(nil), s.entries...)
}

// inlineQueue runs tasks on the caller's goroutine.
type inlineQueue struct {
	err error
}

func (q inlineQueue) Enqueue(t tasks.Task) error {
	if q.err != nil {
		return q.err
	}
	_ = t.Run(context.Background())
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []infraevents.EventType
}

func (e *eventLog) PublishAsync(ev infraevents.ExtractionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev.EventType)
}

func (e *eventLog) types() []infraevents.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]infraevents.EventType(nil), e.events...)
}

// upstream answers GraphQL queries from a handler keyed by query substring.
type upstream struct {
	mu       sync.Mutex
	requests []shopify.Request
	execute  func(req shopify.Request) (*shopify.Response, error)
	get      func(req shopify.RESTRequest) (json.RawMessage, error)
	shop     func() (string, error)
}

func (u *upstream) Execute(_ context.Context, req shopify.Request) (*shopify.Response, error) {
	u.mu.Lock()
	u.requests = append(u.requests, req)
	u.mu.Unlock()
	return u.execute(req)
}

func (u *upstream) TestConnection(context.Context, string, string, string, time.Duration) (string, error) {
	return u.shop()
}

func (u *upstream) Get(_ context.Context, req shopify.RESTRequest) (json.RawMessage, error) {
	return u.get(req)
}

func (u *upstream) calls() []shopify.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]shopify.Request(nil), u.requests...)
}

func ordersData(n int) json.RawMessage {
	edges := make([]string, n)
	for i := range n {
		edges[i] = fmt.Sprintf(`{"node":{"id":"gid://shopify/Order/%d","name":"#%d"}}`, i+1, 1000+i)
	}
	return json.RawMessage(`{"orders":{"edges":[` + strings.Join(edges, ",") + `]}}`)
}

type fixture struct {
	svc         *extraction.Service
	sources     sourceStore
	extractions *extractionStore
	oplogs      *opLogStore
	upstream    *upstream
	events      *eventLog
	deps        extraction.Deps
}

func depsOf(f *fixture) extraction.Deps {
	return f.deps
}

func newFixture(t *testing.T, cfg extraction.Config) *fixture {
	t.Helper()

	catalog, err := templates.Builtin()
	require.NoError(t, err)

	f := &fixture{
		sources: sourceStore{
			"src-1": {ID: "src-1", SourceType: "shopify", Credentials: models.JSONBMap{
				"store_name": "acme.myshopify.com", "access_token": "shpat_1",
			}},
			"src-incomplete": {ID: "src-incomplete", SourceType: "Shopify", Credentials: models.JSONBMap{}},
		},
		extractions: newExtractionStore(),
		oplogs:      &opLogStore{},
		events:      &eventLog{},
		upstream: &upstream{
			execute: func(shopify.Request) (*shopify.Response, error) {
				return &shopify.Response{Data: ordersData(2)}, nil
			},
			get: func(shopify.RESTRequest) (json.RawMessage, error) {
				return json.RawMessage(`[]`), nil
			},
			shop: func() (string, error) { return "Acme", nil },
		},
	}
	f.deps = extraction.Deps{
		Sources:     f.sources,
		Extractions: f.extractions,
		OpLogs:      f.oplogs,
		Resolver:    credentials.NewResolver(noSharedCredentials{}),
		Preparer:    query.NewPreparer(templates.NewRegistry(catalog, nil)),
		Upstream:    f.upstream,
		Dependent:   dependent.NewOrchestrator(2, infralogger.NewNop()),
		Tasks:       inlineQueue{},
		Events:      f.events,
		Log:         infralogger.NewNop(),
	}
	f.svc = extraction.NewService(cfg, f.deps)
	return f
}
