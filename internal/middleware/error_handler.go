package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

// ErrorHandler отдает последнюю ошибку, добавленную через c.Error. Внутренние ошибки
// логируются с причиной, клиент получает общее сообщение.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		statusCode := errors.HTTPStatusFromError(err)
		if statusCode >= http.StatusInternalServerError {
			log.Error("Request failed", "error", err, "method", c.Request.Method, "path", c.FullPath(), "request_id", c.GetString(requestIDKey))
		}

		c.JSON(statusCode, gin.H{
			"error": errors.PublicMessage(err),
		})
	}
}
