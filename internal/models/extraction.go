package models

import (
	"fmt"
	"slices"
	"time"
)

// ExtractionStatus is the lifecycle state of a persisted run.
type ExtractionStatus string

const (
	StatusPending   ExtractionStatus = "pending"
	StatusRunning   ExtractionStatus = "running"
	StatusCompleted ExtractionStatus = "completed"
	StatusFailed    ExtractionStatus = "failed"
)

var validTransitions = map[ExtractionStatus][]ExtractionStatus{
	StatusPending: {
		StatusRunning,
		StatusFailed, // source, credential or query problems found before the call
	},
	StatusRunning: {
		StatusCompleted,
		StatusFailed,
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

// ValidateStatusTransition rejects moves that are not forward along
// pending -> running -> completed|failed.
func ValidateStatusTransition(from, to ExtractionStatus) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown extraction status: %s", from)
	}
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid extraction status transition from %s to %s", from, to)
	}
	return nil
}

// PredecessorsOf lists the statuses that may move to to.
func PredecessorsOf(to ExtractionStatus) []ExtractionStatus {
	var from []ExtractionStatus
	for _, s := range []ExtractionStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed} {
		if slices.Contains(validTransitions[s], to) {
			from = append(from, s)
		}
	}
	return from
}

// IsTerminal reports whether no further transition is possible.
func (s ExtractionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Extraction is the persisted record of one full run.
type Extraction struct {
	ID            string           `db:"id"             json:"id"`
	SourceID      string           `db:"source_id"      json:"source_id"`
	TemplateKey   *string          `db:"template_key"   json:"template_key,omitempty"`
	TemplateName  *string          `db:"template_name"  json:"template_name,omitempty"`
	CustomQuery   *string          `db:"custom_query"   json:"custom_query,omitempty"`
	Status        ExtractionStatus `db:"status"         json:"status"`
	Progress      int              `db:"progress"       json:"progress"`
	StatusMessage *string          `db:"status_message" json:"status_message,omitempty"`
	ResultData    Records          `db:"result_data"    json:"result_data,omitempty"`
	RecordCount   int              `db:"record_count"   json:"record_count"`
	StartedAt     *time.Time       `db:"started_at"     json:"started_at,omitempty"`
	CompletedAt   *time.Time       `db:"completed_at"   json:"completed_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"     json:"updated_at"`
}

// StatusUpdate is the set of columns written with a transition.
// Nil fields are left unchanged.
type StatusUpdate struct {
	Status        ExtractionStatus
	Progress      *int
	StatusMessage *string
	ResultData    Records
	RecordCount   *int
	StartedAt     *time.Time
	CompletedAt   *time.Time
}
