package templates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/models"
)

const cacheKeyPrefix = "extractor:template:"

// ByIDReader loads dataset template records by id.
type ByIDReader interface {
	GetByID(ctx context.Context, id string) (*models.DatasetTemplate, error)
}

// CachedReader fronts a ByIDReader with Redis. Cache failures are logged and
// fall through to the reader. A nil client disables caching. Cached entries
// carry the template identity only; Query is never cached.
type CachedReader struct {
	next   ByIDReader
	client *redis.Client
	ttl    time.Duration
	log    infralogger.Logger
}

func NewCachedReader(next ByIDReader, client *redis.Client, ttl time.Duration, log infralogger.Logger) *CachedReader {
	return &CachedReader{next: next, client: client, ttl: ttl, log: log}
}

// GetByID implements ByIDReader.
func (c *CachedReader) GetByID(ctx context.Context, id string) (*models.DatasetTemplate, error) {
	if c.client == nil {
		return c.next.GetByID(ctx, id)
	}

	key := cacheKeyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var tmpl models.DatasetTemplate
		if jsonErr := json.Unmarshal(raw, &tmpl); jsonErr == nil {
			return &tmpl, nil
		}
		c.log.Warn("Discarding unreadable cached template", infralogger.String("template_id", id))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("Template cache read failed", infralogger.String("template_id", id), infralogger.Error(err))
	}

	tmpl, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, tmpl)
	return tmpl, nil
}

func (c *CachedReader) store(ctx context.Context, key string, tmpl *models.DatasetTemplate) {
	payload, err := json.Marshal(tmpl)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("Template cache write failed", infralogger.String("cache_key", key), infralogger.Error(err))
	}
}
