package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"streetart_marketplace/pkg/logger"
)

const rateLimitKeyPrefix = "ratelimit:"

type RateLimitRepository interface {
	// Increment учитывает одно обращение по key в фиксированном окне и возвращает
	// число обращений в этом окне.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = rateLimitKeyPrefix + key

	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err, "key", key)
		return 0, err
	}

	return incr.Val(), nil
}
