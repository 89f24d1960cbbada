// Package events publishes extraction lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	infraevents "github.com/onronder/p-958660-sub000/infrastructure/events"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
)

const (
	asyncPublishTimeout = 5 * time.Second
	// streamMaxLen caps the stream with approximate trimming.
	streamMaxLen = 10000
)

// Publisher publishes extraction events to Redis Streams.
type Publisher struct {
	client *redis.Client
	log    infralogger.Logger
}

// NewPublisher returns nil if client is nil. A nil *Publisher is a no-op.
func NewPublisher(client *redis.Client, log infralogger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, log: log}
}

// Publish sends an event to the stream.
func (p *Publisher) Publish(ctx context.Context, event infraevents.ExtractionEvent) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: infraevents.StreamName,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"event_type": string(event.EventType),
			"event":      string(payload),
		},
	})
	if publishErr := result.Err(); publishErr != nil {
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	p.log.Debug("Published extraction event",
		infralogger.String("event_type", string(event.EventType)),
		infralogger.String("extraction_id", event.ExtractionID),
		infralogger.String("stream_id", result.Val()),
	)
	return nil
}

// PublishAsync publishes in the background. Errors are logged only.
func (p *Publisher) PublishAsync(event infraevents.ExtractionEvent) {
	if p == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.log.Error("Async publish failed",
				infralogger.String("event_type", string(event.EventType)),
				infralogger.String("extraction_id", event.ExtractionID),
				infralogger.Error(err),
			)
		}
	}()
}
