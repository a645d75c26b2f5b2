package service

import (
	"context"
	"time"

	"streetart_marketplace/internal/config"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

type RateLimitService interface {
	// Allow учитывает обращение по key и сообщает, укладывается ли оно в окно.
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	limit         int
	window        time.Duration
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		limit:         cfg.Requests,
		window:        cfg.Window,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, int, error) {
	count, err := s.rateLimitRepo.Increment(ctx, key, s.window)
	if err != nil {
		return false, 0, err
	}
	remaining := s.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return int(count) <= s.limit, remaining, nil
}

func (s *rateLimitService) Limit() int { return s.limit }
