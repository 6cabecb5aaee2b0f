package database

import (
	"context"

	"github.com/blertbank/backend/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// InitRedis returns a connected client, or nil when Redis is disabled or
// unreachable. The ledger works without it; only the replay cache is lost.
func InitRedis(ctx context.Context, cfg config.RedisConfig, log *logrus.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("Redis disabled, idempotent replays will be served from Postgres")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis connection failed, continuing without Redis")
		rdb.Close()
		return nil
	}

	log.WithField("addr", cfg.Addr()).Info("Redis connection established")
	return rdb
}
