package models

import "time"

// OperationLog is one append-only row describing a pipeline run.
type OperationLog struct {
	ID           string    `db:"id"`
	Operation    string    `db:"operation"`
	SourceID     string    `db:"source_id"`
	StoreName    string    `db:"store_name"`
	RecordCount  int       `db:"record_count"`
	DurationMs   int64     `db:"duration_ms"`
	Success      bool      `db:"success"`
	ErrorCode    *string   `db:"error_code"`
	ErrorMessage *string   `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
}
