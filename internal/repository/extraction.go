package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/onronder/p-958660-sub000/internal/models"
)

// ExtractionRepository owns the extractions table.
type ExtractionRepository struct {
	db *sqlx.DB
}

func NewExtractionRepository(db *sqlx.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

// Create inserts e in pending state. CreatedAt and UpdatedAt are set from the database.
func (r *ExtractionRepository) Create(ctx context.Context, e *models.Extraction) error {
	query := `
		INSERT INTO extractions (
			id, source_id, template_key, template_name, custom_query,
			status, progress, record_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0)
		RETURNING created_at, updated_at
	`

	e.Status = models.StatusPending
	err := r.db.QueryRowxContext(ctx, query,
		e.ID,
		e.SourceID,
		e.TemplateKey,
		e.TemplateName,
		e.CustomQuery,
		e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create extraction: %w", err)
	}
	return nil
}

// GetByID loads one extraction including its result data.
func (r *ExtractionRepository) GetByID(ctx context.Context, id string) (*models.Extraction, error) {
	query := `
		SELECT id, source_id, template_key, template_name, custom_query,
		       status, progress, status_message, result_data, record_count,
		       started_at, completed_at, created_at, updated_at
		FROM extractions
		WHERE id = $1
	`

	var e models.Extraction
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		if isNoRow(err) {
			return nil, fmt.Errorf("extraction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get extraction: %w", err)
	}
	return &e, nil
}

// Transition moves the extraction to upd.Status, but only from a status that
// is allowed to precede it. A row already moved by someone else yields
// ErrStaleStatus.
func (r *ExtractionRepository) Transition(ctx context.Context, id string, upd models.StatusUpdate) error {
	from := models.PredecessorsOf(upd.Status)
	if len(from) == 0 {
		return fmt.Errorf("transition extraction %s: nothing may move to %s", id, upd.Status)
	}
	expected := make([]string, len(from))
	for i, s := range from {
		expected[i] = string(s)
	}

	query := `
		UPDATE extractions
		SET status         = $2,
		    progress       = COALESCE($3, progress),
		    status_message = COALESCE($4, status_message),
		    result_data    = COALESCE($5, result_data),
		    record_count   = COALESCE($6, record_count),
		    started_at     = COALESCE($7, started_at),
		    completed_at   = COALESCE($8, completed_at),
		    updated_at     = $9
		WHERE id = $1 AND status = ANY($10)
	`

	res, err := r.db.ExecContext(ctx, query,
		id,
		upd.Status,
		upd.Progress,
		upd.StatusMessage,
		upd.ResultData,
		upd.RecordCount,
		upd.StartedAt,
		upd.CompletedAt,
		time.Now().UTC(),
		pq.Array(expected),
	)
	if err != nil {
		return fmt.Errorf("transition extraction: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition extraction rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("extraction %s to %s: %w", id, upd.Status, ErrStaleStatus)
	}
	return nil
}
