package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"streetart_marketplace/internal/config"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/middleware"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/internal/service"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	User         *UserHandler
	Proposal     *ProposalHandler
	Project      *ProjectHandler
	Conversation *ConversationHandler
	WebSocket    *WebSocketHandler
}

func NewHandlers(services *service.Services, feed repository.ChangeFeed, checks map[string]HealthCheck, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(checks),
		Auth:         NewAuthHandler(services.Auth, log),
		User:         NewUserHandler(services.User, log),
		Proposal:     NewProposalHandler(services.Lifecycle, log),
		Project:      NewProjectHandler(services.Lifecycle, log),
		Conversation: NewConversationHandler(services.Conversation, log),
		WebSocket:    NewWebSocketHandler(services.Conversation, services.RateLimit, feed, cfg.Server.AllowedOrigins, cfg.Realtime, log),
	}
}

// actor возвращает текущего пользователя или добавляет ошибку unauthorized.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.CurrentActor(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
	}
	return a, ok
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}
