package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onronder/p-958660-sub000/internal/models"
)

const sessionKeyPrefix = "extractor:preview:"

// State is what a preview session shows the user.
type State struct {
	Loading    bool            `json:"loading"`
	Data       []models.Record `json:"data"`
	Sample     *string         `json:"sample"`
	Note       string          `json:"note,omitempty"`
	Error      *string         `json:"error"`
	Category   Category        `json:"category,omitempty"`
	RetryCount int             `json:"retry_count"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ErrSessionContended is returned when an update kept losing to concurrent
// writers.
var ErrSessionContended = errors.New("preview session updated concurrently")

const maxUpdateAttempts = 5

// StateStore keeps one State per session. Load returns a zero State for an
// unknown session. Update applies fn to the current State and stores the
// result atomically; fn may run more than once and must not have side
// effects.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (*State, error)
	Update(ctx context.Context, sessionID string, fn func(*State)) (*State, error)
}

// MemoryStore is a process-local StateStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]State)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.sessions[sessionID]
	return &st, nil
}

func (m *MemoryStore) Update(_ context.Context, sessionID string, fn func(*State)) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.sessions[sessionID]
	fn(&st)
	m.sessions[sessionID] = st
	return &st, nil
}

// RedisStore keeps sessions as JSON with a TTL refreshed on every write.
// Updates run as WATCH/MULTI transactions on the session key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, sessionID string) (*State, error) {
	return decodeState(r.client.Get(ctx, sessionKeyPrefix+sessionID))
}

func (r *RedisStore) Update(ctx context.Context, sessionID string, fn func(*State)) (*State, error) {
	key := sessionKeyPrefix + sessionID

	var updated *State
	txf := func(tx *redis.Tx) error {
		st, err := decodeState(tx.Get(ctx, key))
		if err != nil {
			return err
		}
		fn(st)
		payload, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode preview session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err == nil {
			updated = st
		}
		return err
	}

	for range maxUpdateAttempts {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update preview session: %w", err)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update preview session %s: %w", sessionID, ErrSessionContended)
}

func decodeState(cmd *redis.StringCmd) (*State, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preview session: %w", err)
	}
	var st State
	if err = json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode preview session: %w", err)
	}
	return &st, nil
}
