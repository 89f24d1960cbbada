package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onronder/p-958660-sub000/internal/models"
)

// SourceRepository reads connected sources.
type SourceRepository struct {
	db *sqlx.DB
}

func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// GetByID returns the source. Soft-deleted sources are reported as not found.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	query := `
		SELECT id, name, source_type, url, credentials, is_deleted, deletion_marked_at
		FROM sources
		WHERE id = $1
	`

	var src models.Source
	if err := r.db.GetContext(ctx, &src, query, id); err != nil {
		if isNoRow(err) {
			return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	if src.IsDeleted {
		return nil, fmt.Errorf("source %s is deleted: %w", id, ErrNotFound)
	}
	return &src, nil
}
