package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/dependent"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/normalize"
	"github.com/onronder/p-958660-sub000/internal/query"
	"github.com/onronder/p-958660-sub000/internal/repository"
	"github.com/onronder/p-958660-sub000/internal/shopify"
)

// TestConnection runs the minimal shop query for a source. Resolution and
// upstream failures are reported in the result; only a missing source is an
// error.
func (s *Service) TestConnection(ctx context.Context, sourceID string) (*models.ConnectionTestResult, error) {
	start := s.now()

	src, creds, err := s.loadSource(ctx, sourceID)
	if src == nil && err != nil {
		return nil, err
	}

	var shopName string
	if err == nil {
		shopName, err = s.Upstream.TestConnection(ctx, creds.StoreName, creds.APIToken,
			s.cfg.APIVersion, s.cfg.ConnectionTimeout)
	}
	s.finish(ctx, ModeConnectionTest, sourceID, &plan{source: src, creds: creds}, nil, start, err)

	if err != nil {
		appErr := apperr.From(err)
		return &models.ConnectionTestResult{
			Success: false,
			Message: appErr.Message,
			Code:    string(appErr.Code),
			Status:  appErr.Status,
		}, nil
	}
	if shopName == "" {
		shopName = creds.StoreName
	}
	return &models.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("Successfully connected to %s", shopName),
	}, nil
}

// PreviewData previews a REST Admin resource through the generic payload
// normalizer. At most five records are returned.
func (s *Service) PreviewData(ctx context.Context, req models.PreviewDataRequest) (*models.ExtractionResponse, error) {
	return s.runPreview(ctx, ModePreviewData, req.SourceID, func(ctx context.Context) (*plan, error) {
		src, creds, err := s.loadSource(ctx, req.SourceID)
		if err != nil {
			return &plan{source: src}, err
		}
		limit := query.EffectiveLimit(req.Limit, true)
		return &plan{
			source: src,
			creds:  creds,
			run: func(ctx context.Context) (*dependent.Result, error) {
				body, getErr := s.Upstream.Get(ctx, shopify.RESTRequest{
					ShopName:    creds.StoreName,
					AccessToken: creds.APIToken,
					Resource:    req.Resource,
					Limit:       limit,
					APIVersion:  s.cfg.APIVersion,
					Timeout:     s.cfg.PreviewTimeout,
				})
				if getErr != nil {
					return nil, getErr
				}
				records := normalize.Payload(body)
				return &dependent.Result{Records: records[:min(limit, len(records))], Preview: true}, nil
			},
		}, nil
	})
}

// Start creates a pending extraction and runs it on the background queue.
func (s *Service) Start(ctx context.Context, req models.ExtractionRequest) (*models.Extraction, error) {
	if req.PreviewOnly {
		return nil, apperr.New(apperr.CodeInvalidRequest, "Previews run synchronously; drop async or preview_only")
	}
	if _, err := s.source(ctx, req.SourceID); err != nil {
		return nil, err
	}

	ext, err := s.begin(ctx, req.ExtractionID, newExtraction(req))
	if err != nil {
		return nil, err
	}
	snapshot := *ext

	task := backgroundRun(ext.ID, func(taskCtx context.Context) error {
		_, runErr := s.runPersisted(taskCtx, ext, ModeFull, s.planQuery(req, false))
		return runErr
	})
	if err = s.Tasks.Enqueue(task); err != nil {
		failure := apperr.Wrap(apperr.CodeUnexpected, "Extraction could not be queued", err).WithStatus(http.StatusServiceUnavailable)
		_ = s.fail(ctx, s.logger(ctx), ext, ModeFull, nil, s.now(), failure)
		return nil, failure
	}
	return &snapshot, nil
}

// Get reads an extraction by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Extraction, error) {
	ext, err := s.Extractions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeExtractionNotFound, "Extraction %s not found", id)
		}
		return nil, apperr.Wrap(apperr.CodeUnexpected, "Failed to load extraction", err)
	}
	return ext, nil
}
