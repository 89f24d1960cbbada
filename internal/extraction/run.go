package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	infraevents "github.com/onronder/p-958660-sub000/infrastructure/events"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/dependent"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/normalize"
	"github.com/onronder/p-958660-sub000/internal/query"
	"github.com/onronder/p-958660-sub000/internal/repository"
)

// plan is a fully resolved run waiting to call Shopify.
type plan struct {
	source *models.Source
	creds  *models.CredentialBundle
	run    func(ctx context.Context) (*dependent.Result, error)
}

type planner func(ctx context.Context) (*plan, error)

// Extract runs a template or custom query. Previews return directly; full
// runs are persisted on an extraction row.
func (s *Service) Extract(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResponse, error) {
	if req.PreviewOnly {
		return s.runPreview(ctx, ModePreview, req.SourceID, s.planQuery(req, true))
	}
	if _, err := s.source(ctx, req.SourceID); err != nil {
		return nil, err
	}
	ext, err := s.begin(ctx, req.ExtractionID, newExtraction(req))
	if err != nil {
		return nil, err
	}
	return s.runPersisted(ctx, ext, ModeFull, s.planQuery(req, false))
}

// ExtractDependent runs a two-phase dependent template.
func (s *Service) ExtractDependent(ctx context.Context, req models.DependentRequest) (*models.ExtractionResponse, error) {
	tmpl, err := dependent.Lookup(req.TemplateName)
	if err != nil {
		return nil, err
	}
	if req.PreviewOnly {
		return s.runPreview(ctx, ModeDependentPreview, req.SourceID, s.planDependent(req, tmpl, true))
	}
	if _, err = s.source(ctx, req.SourceID); err != nil {
		return nil, err
	}
	ext, err := s.begin(ctx, req.ExtractionID, &models.Extraction{
		SourceID:     req.SourceID,
		TemplateName: &req.TemplateName,
	})
	if err != nil {
		return nil, err
	}
	return s.runPersisted(ctx, ext, ModeDependent, s.planDependent(req, tmpl, false))
}

func (s *Service) planQuery(req models.ExtractionRequest, preview bool) planner {
	timeout := s.cfg.FullTimeout
	if preview {
		timeout = s.cfg.PreviewTimeout
	}
	return func(ctx context.Context) (*plan, error) {
		src, creds, err := s.loadSource(ctx, req.SourceID)
		if err != nil {
			return &plan{source: src}, err
		}
		prepared, err := s.Preparer.Prepare(ctx, query.Request{
			CustomQuery: req.CustomQuery,
			TemplateKey: req.TemplateKey,
			Limit:       req.Limit,
			Preview:     preview,
		})
		if err != nil {
			return &plan{source: src, creds: creds}, err
		}
		exec := s.execFunc(creds, timeout)
		return &plan{
			source: src,
			creds:  creds,
			run: func(ctx context.Context) (*dependent.Result, error) {
				data, execErr := exec(ctx, prepared.Query, prepared.Variables)
				if execErr != nil {
					return nil, execErr
				}
				return &dependent.Result{Records: normalize.Records(data), Preview: preview}, nil
			},
		}, nil
	}
}

func (s *Service) planDependent(req models.DependentRequest, tmpl *dependent.Template, preview bool) planner {
	timeout := s.cfg.FullTimeout
	if preview {
		timeout = s.cfg.PreviewTimeout
	}
	return func(ctx context.Context) (*plan, error) {
		src, creds, err := s.loadSource(ctx, req.SourceID)
		if err != nil {
			return &plan{source: src}, err
		}
		exec := s.execFunc(creds, timeout)
		run := func(ctx context.Context) (*dependent.Result, error) {
			if preview {
				return s.Dependent.Preview(ctx, exec, tmpl, req.Limit)
			}
			return s.Dependent.Run(ctx, exec, tmpl, req.Limit)
		}
		return &plan{source: src, creds: creds, run: run}, nil
	}
}

// runPreview executes without touching the extractions table.
func (s *Service) runPreview(ctx context.Context, mode, sourceID string, plan planner) (*models.ExtractionResponse, error) {
	start := s.now()

	p, err := plan(ctx)
	var res *dependent.Result
	if err == nil {
		res, err = p.run(ctx)
	}
	var resp *models.ExtractionResponse
	if err == nil {
		resp, err = s.previewResponse(res)
	}

	s.finish(ctx, mode, sourceID, p, res, start, err)
	if err != nil {
		return nil, apperr.From(err)
	}
	return resp, nil
}

// previewResponse caps res at query.PreviewCap records. Custom queries can
// hard-code a page size, so the $first variable alone does not bound it.
func (s *Service) previewResponse(res *dependent.Result) (*models.ExtractionResponse, error) {
	if len(res.Records) > query.PreviewCap {
		res.Records = res.Records[:query.PreviewCap]
	}
	resp := response(res)
	resp.Preview = true
	size, err := json.Marshal(resp.Results)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnexpected, "Failed to encode preview", err)
	}
	if len(size) > s.cfg.MaxPreviewBytes {
		return nil, apperr.Newf(apperr.CodeSizeLimitExceeded,
			"Preview is %d bytes, larger than the %d byte limit; lower the limit or select fewer fields",
			len(size), s.cfg.MaxPreviewBytes)
	}
	return resp, nil
}

// runPersisted walks ext through running to completed or failed.
func (s *Service) runPersisted(
	ctx context.Context,
	ext *models.Extraction,
	mode string,
	plan planner,
) (*models.ExtractionResponse, error) {
	start := s.now()
	log := s.logger(ctx).With(
		infralogger.String("extraction_id", ext.ID),
		infralogger.String("source_id", ext.SourceID),
		infralogger.String("mode", mode),
	)

	p, err := plan(ctx)
	if err != nil {
		return nil, s.fail(ctx, log, ext, mode, p, start, err)
	}

	startedAt := s.now().UTC()
	if err = s.transition(ctx, ext, models.StatusUpdate{
		Status:    models.StatusRunning,
		Progress:  intPtr(0),
		StartedAt: &startedAt,
	}); err != nil {
		return nil, s.fail(ctx, log, ext, mode, p, start, err)
	}
	s.publish(infraevents.ExtractionEvent{
		EventType:    infraevents.ExtractionStarted,
		ExtractionID: ext.ID,
		SourceID:     ext.SourceID,
	})
	log.Info("Extraction started")

	res, err := p.run(ctx)
	if err != nil {
		return nil, s.fail(ctx, log, ext, mode, p, start, err)
	}

	completedAt := s.now().UTC()
	count := len(res.Records)
	if err = s.transition(ctx, ext, models.StatusUpdate{
		Status:      models.StatusCompleted,
		Progress:    intPtr(100),
		ResultData:  models.Records(res.Records),
		RecordCount: &count,
		CompletedAt: &completedAt,
	}); err != nil {
		return nil, s.fail(ctx, log, ext, mode, p, start, err)
	}

	elapsed := s.now().Sub(start)
	s.publish(infraevents.ExtractionEvent{
		EventType:    infraevents.ExtractionCompleted,
		ExtractionID: ext.ID,
		SourceID:     ext.SourceID,
		Payload: infraevents.CompletedPayload{
			RecordCount: count,
			DurationMs:  elapsed.Milliseconds(),
			Partial:     res.Partial,
		},
	})
	log.Info("Extraction completed",
		infralogger.Int("record_count", count),
		infralogger.Duration("elapsed", elapsed),
		infralogger.Bool("partial", res.Partial),
	)
	s.finish(ctx, mode, ext.SourceID, p, res, start, nil)

	resp := response(res)
	resp.ExtractionID = ext.ID
	return resp, nil
}

// fail records cause on the extraction row and returns it as an *apperr.Error.
// The row write survives cancellation of ctx.
func (s *Service) fail(
	ctx context.Context,
	log infralogger.Logger,
	ext *models.Extraction,
	mode string,
	p *plan,
	start time.Time,
	cause error,
) error {
	appErr := apperr.From(cause)
	if appErr.Code != apperr.CodeInvalidTransition && !ext.Status.IsTerminal() {
		completedAt := s.now().UTC()
		msg := appErr.Message
		writeCtx := context.WithoutCancel(ctx)
		if err := s.transition(writeCtx, ext, models.StatusUpdate{
			Status:        models.StatusFailed,
			StatusMessage: &msg,
			CompletedAt:   &completedAt,
		}); err != nil {
			log.Error("Failed to record extraction failure", infralogger.Error(err))
		}
	}

	s.publish(infraevents.ExtractionEvent{
		EventType:    infraevents.ExtractionFailed,
		ExtractionID: ext.ID,
		SourceID:     ext.SourceID,
		Payload:      infraevents.FailedPayload{Code: string(appErr.Code), Message: appErr.Message},
	})
	log.Warn("Extraction failed",
		infralogger.String("code", string(appErr.Code)),
		infralogger.Error(cause),
	)
	s.finish(ctx, mode, ext.SourceID, p, nil, start, appErr)
	return appErr
}

// transition validates and persists a status move, then updates ext.
func (s *Service) transition(ctx context.Context, ext *models.Extraction, upd models.StatusUpdate) error {
	if err := models.ValidateStatusTransition(ext.Status, upd.Status); err != nil {
		return apperr.Wrap(apperr.CodeInvalidTransition, "Invalid extraction status transition", err)
	}
	if err := s.Extractions.Transition(ctx, ext.ID, upd); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return apperr.Wrap(apperr.CodeInvalidTransition, "Extraction was modified by another run", err)
		}
		return apperr.Wrap(apperr.CodeUnexpected, "Failed to update extraction status", err)
	}
	ext.Status = upd.Status
	return nil
}

// begin creates a pending extraction, or adopts id when it names a pending one.
func (s *Service) begin(ctx context.Context, id string, fresh *models.Extraction) (*models.Extraction, error) {
	if id != "" {
		ext, err := s.Extractions.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeExtractionNotFound, "Extraction %s not found", id)
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeUnexpected, "Failed to load extraction", err)
		}
		if ext.Status != models.StatusPending {
			return nil, apperr.Newf(apperr.CodeInvalidTransition,
				"Extraction %s is %s; only pending extractions can be started", id, ext.Status)
		}
		return ext, nil
	}

	fresh.ID = uuid.NewString()
	if err := s.Extractions.Create(ctx, fresh); err != nil {
		return nil, apperr.Wrap(apperr.CodeUnexpected, "Failed to create extraction", err)
	}
	return fresh, nil
}

// finish records metrics and queues the operation log. It never fails.
func (s *Service) finish(
	ctx context.Context,
	mode, sourceID string,
	p *plan,
	res *dependent.Result,
	start time.Time,
	err error,
) {
	s.observe(mode, err)

	entry := &models.OperationLog{
		ID:         uuid.NewString(),
		Operation:  mode,
		SourceID:   sourceID,
		DurationMs: s.now().Sub(start).Milliseconds(),
		Success:    err == nil,
		CreatedAt:  s.now().UTC(),
	}
	if p != nil && p.creds != nil {
		entry.StoreName = p.creds.StoreName
	}
	if res != nil {
		entry.RecordCount = len(res.Records)
	}
	if err != nil {
		appErr := apperr.From(err)
		code, msg := string(appErr.Code), appErr.Message
		entry.ErrorCode, entry.ErrorMessage = &code, &msg
	}

	enqueueErr := s.Tasks.Enqueue(operationLogTask(s.OpLogs, entry))
	if enqueueErr != nil {
		s.logger(ctx).Warn("Operation log not queued",
			infralogger.String("operation", mode),
			infralogger.Error(enqueueErr),
		)
	}
}

func response(res *dependent.Result) *models.ExtractionResponse {
	records := res.Records
	if records == nil {
		records = []models.Record{}
	}
	return &models.ExtractionResponse{
		Results:   records,
		Count:     len(records),
		Preview:   res.Preview,
		Sample:    Sample(records),
		Note:      res.Note,
		Partial:   res.Partial,
		FailedIDs: res.FailedIDs,
	}
}

func newExtraction(req models.ExtractionRequest) *models.Extraction {
	ext := &models.Extraction{SourceID: req.SourceID}
	if req.CustomQuery != "" {
		ext.CustomQuery = &req.CustomQuery
	} else if req.TemplateKey != "" {
		ext.TemplateKey = &req.TemplateKey
	}
	return ext
}

func intPtr(v int) *int { return &v }
