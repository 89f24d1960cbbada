// Package api exposes the extraction pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/dependent"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/preview"
	"github.com/onronder/p-958660-sub000/internal/tasks"
	"github.com/onronder/p-958660-sub000/internal/templates"
)

const defaultDeadLetterLimit = 50

// Extractor is implemented by *extraction.Service.
type Extractor interface {
	Extract(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResponse, error)
	ExtractDependent(ctx context.Context, req models.DependentRequest) (*models.ExtractionResponse, error)
	PreviewData(ctx context.Context, req models.PreviewDataRequest) (*models.ExtractionResponse, error)
	TestConnection(ctx context.Context, sourceID string) (*models.ConnectionTestResult, error)
	Start(ctx context.Context, req models.ExtractionRequest) (*models.Extraction, error)
	Get(ctx context.Context, id string) (*models.Extraction, error)
}

// Previewer is implemented by *preview.Coordinator.
type Previewer interface {
	Generate(ctx context.Context, req preview.Request) (*preview.State, error)
	Retry(ctx context.Context, req preview.Request) (*preview.State, error)
	Session(ctx context.Context, sessionID string) (*preview.State, error)
}

// DeadLetterReader lists background tasks that did not complete.
type DeadLetterReader interface {
	Recent(ctx context.Context, n int64) ([]tasks.DeadLetter, error)
}

type Handler struct {
	extractor   Extractor
	previews    Previewer
	catalog     *templates.Catalog
	deadLetters DeadLetterReader
	log         infralogger.Logger
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithCatalog exposes the built-in templates on GET /templates.
func WithCatalog(catalog *templates.Catalog) Option {
	return func(h *Handler) { h.catalog = catalog }
}

// WithDeadLetters exposes recent dead letters on GET /dead-letters.
func WithDeadLetters(r DeadLetterReader) Option {
	return func(h *Handler) { h.deadLetters = r }
}

func NewHandler(extractor Extractor, previews Previewer, log infralogger.Logger, opts ...Option) *Handler {
	h := &Handler{extractor: extractor, previews: previews, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Extract runs a preview or full extraction. Full runs with ?async=true are
// queued and answered with 202.
func (h *Handler) Extract(c *gin.Context) {
	var req models.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		ext, err := h.extractor.Start(c.Request.Context(), req)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"extraction_id": ext.ID,
			"status":        ext.Status,
		})
		return
	}

	resp, err := h.extractor.Extract(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExtractDependent(c *gin.Context) {
	var req models.DependentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.extractor.ExtractDependent(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PreviewData(c *gin.Context) {
	var req models.PreviewDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.extractor.PreviewData(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TestConnection answers 200 with success=false for upstream failures; only
// an unknown source is an HTTP error.
func (h *Handler) TestConnection(c *gin.Context) {
	res, err := h.extractor.TestConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetExtraction(c *gin.Context) {
	ext, err := h.extractor.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ext)
}

func (h *Handler) ListDependentTemplates(c *gin.Context) {
	templates := dependent.List()
	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"count":     len(templates),
	})
}

// ListTemplates returns the built-in dataset templates.
func (h *Handler) ListTemplates(c *gin.Context) {
	defs := []templates.Definition{}
	if h.catalog != nil {
		defs = h.catalog.List()
	}
	c.JSON(http.StatusOK, gin.H{
		"templates": defs,
		"count":     len(defs),
	})
}

// ListDeadLetters returns the newest dead letters, ?limit=N (default 50).
func (h *Handler) ListDeadLetters(c *gin.Context) {
	limit := int64(defaultDeadLetterLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > tasks.MaxDeadLetters {
			h.writeError(c, apperr.Newf(apperr.CodeInvalidRequest,
				"limit must be between 1 and %d", tasks.MaxDeadLetters))
			return
		}
		limit = n
	}

	letters := []tasks.DeadLetter{}
	if h.deadLetters != nil {
		var err error
		if letters, err = h.deadLetters.Recent(c.Request.Context(), limit); err != nil {
			h.writeError(c, apperr.Wrap(apperr.CodeUnexpected, "Failed to read dead letters", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"dead_letters": letters,
		"count":        len(letters),
	})
}

func (h *Handler) GeneratePreview(c *gin.Context) {
	h.preview(c, h.previews.Generate)
}

func (h *Handler) RetryPreview(c *gin.Context) {
	h.preview(c, h.previews.Retry)
}

// GetPreview returns the stored state of a preview session.
func (h *Handler) GetPreview(c *gin.Context) {
	state, err := h.previews.Session(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeError(c, apperr.Wrap(apperr.CodeUnexpected, "Failed to load preview session", err))
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) preview(c *gin.Context, run func(context.Context, preview.Request) (*preview.State, error)) {
	var req preview.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	state, err := run(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
