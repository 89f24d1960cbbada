package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
)

// Dead-letter reasons.
const (
	ReasonQueueFull = "queue_full"
	ReasonFailed    = "failed"
	ReasonPanicked  = "panicked"
)

const (
	// DeadLetterKey is the Redis list holding the newest dead letters first.
	DeadLetterKey  = "extractor:dead_letters"
	MaxDeadLetters = 1000
)

// DeadLetter describes a task that did not complete.
type DeadLetter struct {
	TaskID   string    `json:"task_id"`
	Name     string    `json:"name"`
	Reason   string    `json:"reason"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// DeadLetterSink stores dead letters. Record never fails the caller.
type DeadLetterSink interface {
	Record(ctx context.Context, letter DeadLetter)
}

// DeadLetterStore is a sink that can list what it kept.
type DeadLetterStore interface {
	DeadLetterSink
	Recent(ctx context.Context, n int64) ([]DeadLetter, error)
}

// LogSink only logs. The queue already logs every dead letter, so this
// records nothing further.
type LogSink struct {
	log infralogger.Logger
}

func NewLogSink(log infralogger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(context.Context, DeadLetter) {}

// Recent is always empty: nothing is kept.
func (s *LogSink) Recent(context.Context, int64) ([]DeadLetter, error) {
	return []DeadLetter{}, nil
}

// RedisSink pushes dead letters onto a capped Redis list.
type RedisSink struct {
	client *redis.Client
	log    infralogger.Logger
}

func NewRedisSink(client *redis.Client, log infralogger.Logger) *RedisSink {
	return &RedisSink{client: client, log: log}
}

func (s *RedisSink) Record(ctx context.Context, letter DeadLetter) {
	data, err := json.Marshal(letter)
	if err != nil {
		s.log.Error("Failed to encode dead letter", infralogger.Error(err))
		return
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, DeadLetterKey, data)
	pipe.LTrim(ctx, DeadLetterKey, 0, MaxDeadLetters-1)
	if _, err = pipe.Exec(ctx); err != nil {
		s.log.Warn("Failed to store dead letter",
			infralogger.String("task_id", letter.TaskID),
			infralogger.Error(err),
		)
	}
}

// Recent returns up to n dead letters, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]DeadLetter, error) {
	raw, err := s.client.LRange(ctx, DeadLetterKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var l DeadLetter
		if jsonErr := json.Unmarshal([]byte(item), &l); jsonErr == nil {
			out = append(out, l)
		}
	}
	return out, nil
}
