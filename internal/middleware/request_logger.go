package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"streetart_marketplace/pkg/logger"
)

func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + redactQuery(raw)
		}

		args := []any{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		}
		if actor, ok := CurrentActor(c); ok {
			args = append(args, "user_id", actor.ID)
		}

		if c.Writer.Status() >= 500 {
			log.Warn("Request", args...)
			return
		}
		log.Info("Request", args...)
	}
}
