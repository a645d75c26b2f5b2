package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/service"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

const actorKey = "actor"

type AuthMiddleware struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

// RequireAuth определяет пользователя по bearer-токену. Браузер не может
// передать заголовки при подключении вебсокета, поэтому принимается
// и query-параметр access_token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		actor, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			m.log.Debug("Token rejected", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(apperrors.HTTPStatusFromError(err), gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(actorKey, *actor)
		c.Set("user_id", actor.ID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// CurrentActor возвращает пользователя, установленного RequireAuth.
func CurrentActor(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// SetActor используется в тестах и за другими middleware аутентификации.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
	c.Set("user_id", actor.ID)
}
