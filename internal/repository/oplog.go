package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onronder/p-958660-sub000/internal/models"
)

// OperationLogRepository appends to operation_logs.
type OperationLogRepository struct {
	db *sqlx.DB
}

func NewOperationLogRepository(db *sqlx.DB) *OperationLogRepository {
	return &OperationLogRepository{db: db}
}

func (r *OperationLogRepository) Insert(ctx context.Context, entry *models.OperationLog) error {
	query := `
		INSERT INTO operation_logs (
			id, operation, source_id, store_name, record_count,
			duration_ms, success, error_code, error_message, created_at
		)
		VALUES (:id, :operation, :source_id, :store_name, :record_count,
			:duration_ms, :success, :error_code, :error_message, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	return nil
}
