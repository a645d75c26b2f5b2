package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit считает запросы в рамках scope: по пользователю, если он аутентифицирован,
// иначе по IP клиента.
func (m *RateLimitMiddleware) Limit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":ip:" + c.ClientIP()
		if actor, ok := CurrentActor(c); ok {
			key = scope + ":user:" + actor.ID.String()
		}

		allowed, remaining, err := m.rateLimitService.Allow(c.Request.Context(), key)
		if err != nil {
			// лимитер недоступен - пропускаем запрос
			m.log.Error("Rate limit check failed", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(m.rateLimitService.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
