// Package events defines the extraction lifecycle events written to Redis
// Streams.
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream for extraction events.
const StreamName = "extraction-events"

// EventType represents the type of extraction event.
type EventType string

const (
	ExtractionStarted   EventType = "EXTRACTION_STARTED"
	ExtractionCompleted EventType = "EXTRACTION_COMPLETED"
	ExtractionFailed    EventType = "EXTRACTION_FAILED"
)

// ExtractionEvent is the envelope for all extraction events.
type ExtractionEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	EventType    EventType `json:"event_type"`
	ExtractionID string    `json:"extraction_id"`
	SourceID     string    `json:"source_id"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload,omitempty"`
}

// CompletedPayload accompanies EXTRACTION_COMPLETED.
type CompletedPayload struct {
	RecordCount int   `json:"record_count"`
	DurationMs  int64 `json:"duration_ms"`
	Partial     bool  `json:"partial,omitempty"`
}

// FailedPayload accompanies EXTRACTION_FAILED.
type FailedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
