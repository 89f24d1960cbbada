// Package preview coordinates user-facing dataset previews: a connectivity
// check with backoff, dispatch by dataset type, and error classification
// with a per-session retry count.
package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/infrastructure/retry"
	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/repository"
)

// ErrUnknownDatasetType is a caller bug, never a classified user error.
var ErrUnknownDatasetType = errors.New("unknown dataset type")

// DatasetType selects how a preview is produced.
type DatasetType string

const (
	DatasetPredefined DatasetType = "predefined"
	DatasetDependent  DatasetType = "dependent"
	DatasetCustom     DatasetType = "custom"
)

// Request asks for a preview within a session.
type Request struct {
	SessionID    string      `json:"session_id"    binding:"required"`
	SourceID     string      `json:"source_id"     binding:"required"`
	DatasetType  DatasetType `json:"dataset_type"  binding:"required"`
	TemplateID   string      `json:"template_id,omitempty"`
	TemplateName string      `json:"template_name,omitempty"`
	CustomQuery  string      `json:"custom_query,omitempty"`
	Limit        int         `json:"limit,omitempty"`
}

// Extractor is the subset of *extraction.Service the coordinator drives.
type Extractor interface {
	Extract(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResponse, error)
	ExtractDependent(ctx context.Context, req models.DependentRequest) (*models.ExtractionResponse, error)
	TestConnection(ctx context.Context, sourceID string) (*models.ConnectionTestResult, error)
}

// TemplateReader resolves template ids to keys.
type TemplateReader interface {
	GetByID(ctx context.Context, id string) (*models.DatasetTemplate, error)
}

// Recorder counts classified failures.
type Recorder interface {
	ObservePreviewError(category string)
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithRetryConfig replaces the connectivity backoff policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Coordinator) { c.retry = cfg }
}

// WithRecorder installs r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

type Coordinator struct {
	extractor Extractor
	templates TemplateReader
	store     StateStore
	retry     retry.Config
	recorder  Recorder
	log       infralogger.Logger
}

func NewCoordinator(extractor Extractor, templates TemplateReader, store StateStore, log infralogger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		extractor: extractor,
		templates: templates,
		store:     store,
		retry:     retry.Backoff(),
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.IsRetryable = CountsAsRetry
	return c
}

// Generate produces a preview. The session's retry count carries over.
func (c *Coordinator) Generate(ctx context.Context, req Request) (*State, error) {
	return c.run(ctx, req, false)
}

// Retry is a user-initiated retry: the retry count restarts at zero.
func (c *Coordinator) Retry(ctx context.Context, req Request) (*State, error) {
	return c.run(ctx, req, true)
}

// Session returns the current state of a session. Unknown sessions are empty.
func (c *Coordinator) Session(ctx context.Context, sessionID string) (*State, error) {
	state, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return state, nil
}

func (c *Coordinator) run(ctx context.Context, req Request, reset bool) (*State, error) {
	begin := func(st *State) {
		if reset {
			st.RetryCount = 0
		}
		st.Loading = true
		st.UpdatedAt = time.Now().UTC()
	}
	state, err := c.store.Update(ctx, req.SessionID, begin)
	if err != nil {
		return nil, fmt.Errorf("start session %s: %w", req.SessionID, err)
	}

	resp, runErr := c.attempt(ctx, req)

	if errors.Is(runErr, ErrUnknownDatasetType) {
		c.finish(ctx, req.SessionID, state, func(st *State) { st.Loading = false })
		return nil, runErr
	}

	var cls Classification
	state = c.finish(ctx, req.SessionID, state, func(st *State) {
		st.Loading = false
		if runErr == nil {
			st.Data, st.Sample, st.Note = resp.Results, resp.Sample, resp.Note
			st.Error, st.Category = nil, ""
			return
		}
		if CountsAsRetry(runErr) {
			st.RetryCount++
		}
		cls = Classify(runErr, st.RetryCount)
		st.Data, st.Sample, st.Note = nil, nil, ""
		st.Error = &cls.Message
		st.Category = cls.Category
	})

	if runErr != nil {
		if c.recorder != nil {
			c.recorder.ObservePreviewError(string(cls.Category))
		}
		c.log.Info("Preview failed",
			infralogger.String("session_id", req.SessionID),
			infralogger.String("source_id", req.SourceID),
			infralogger.String("category", string(cls.Category)),
			infralogger.Int("retry_count", state.RetryCount),
			infralogger.Error(runErr),
		)
	}
	return state, nil
}

// finish applies fn to the stored session. When the store is unavailable fn
// is applied to fallback so the caller still gets an answer.
func (c *Coordinator) finish(ctx context.Context, sessionID string, fallback *State, fn func(*State)) *State {
	stamped := func(st *State) {
		fn(st)
		st.UpdatedAt = time.Now().UTC()
	}
	state, err := c.store.Update(ctx, sessionID, stamped)
	if err != nil {
		c.log.Warn("Failed to save preview session",
			infralogger.String("session_id", sessionID),
			infralogger.Error(err),
		)
		stamped(fallback)
		return fallback
	}
	return state
}

// attempt checks connectivity, then dispatches by dataset type.
func (c *Coordinator) attempt(ctx context.Context, req Request) (*models.ExtractionResponse, error) {
	if err := c.checkConnection(ctx, req.SourceID); err != nil {
		return nil, err
	}

	switch req.DatasetType {
	case DatasetPredefined:
		key, err := c.templateKey(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}
		return c.extractor.Extract(ctx, models.ExtractionRequest{
			SourceID: req.SourceID, TemplateKey: key, PreviewOnly: true, Limit: req.Limit,
		})
	case DatasetDependent:
		return c.extractor.ExtractDependent(ctx, models.DependentRequest{
			SourceID: req.SourceID, TemplateName: req.TemplateName, PreviewOnly: true, Limit: req.Limit,
		})
	case DatasetCustom:
		return c.extractor.Extract(ctx, models.ExtractionRequest{
			SourceID: req.SourceID, CustomQuery: req.CustomQuery, PreviewOnly: true, Limit: req.Limit,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatasetType, req.DatasetType)
	}
}

// checkConnection runs the connection test under the backoff policy. Only
// connectivity failures are retried.
func (c *Coordinator) checkConnection(ctx context.Context, sourceID string) error {
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		res, err := c.extractor.TestConnection(ctx, sourceID)
		if err != nil {
			return err
		}
		if !res.Success {
			status := res.Status
			if status == 0 {
				status = apperr.Code(res.Code).Status()
			}
			return apperr.New(apperr.Code(res.Code), res.Message).WithStatus(status)
		}
		return nil
	})
	if errors.Is(err, retry.ErrContextCancelled) {
		return apperr.Wrap(apperr.CodeAPIRequestError, "Connection test cancelled", err)
	}
	return err
}

func (c *Coordinator) templateKey(ctx context.Context, templateID string) (string, error) {
	if strings.TrimSpace(templateID) == "" {
		return "", apperr.New(apperr.CodeMissingQuery, "No template selected")
	}
	tmpl, err := c.templates.GetByID(ctx, templateID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperr.Newf(apperr.CodeTemplateNotFound, "Template %s not found", templateID)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.CodeTemplateLoadError, "Failed to load template", err)
	}
	return tmpl.TemplateKey, nil
}
