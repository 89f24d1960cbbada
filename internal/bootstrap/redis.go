package bootstrap

import (
	"context"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	infraredis "github.com/onronder/p-958660-sub000/infrastructure/redis"
	"github.com/onronder/p-958660-sub000/internal/config"
)

// SetupRedis returns nil when Redis is disabled or unreachable. Every Redis
// consumer treats a nil client as "run without Redis".
func SetupRedis(ctx context.Context, cfg config.RedisConfig, log infralogger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("Redis disabled, using in-process fallbacks")
		return nil
	}

	client, err := infraredis.NewClient(ctx, infraredis.Config{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		log.Warn("Redis not available, using in-process fallbacks",
			infralogger.String("redis_address", cfg.Address),
			infralogger.Error(err),
		)
		return nil
	}

	log.Info("Redis connected",
		infralogger.String("redis_address", cfg.Address),
	)
	return client
}
