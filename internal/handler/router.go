package handler

import (
	"github.com/gin-gonic/gin"
	"streetart_marketplace/internal/config"
	"streetart_marketplace/internal/middleware"
	"streetart_marketplace/pkg/logger"
)

func NewRouter(
	handlers *Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("/auth")
		{
			public.POST("/register", rateLimitMiddleware.Limit("auth"), handlers.Auth.Register)
			public.POST("/login", rateLimitMiddleware.Limit("auth"), handlers.Auth.Login)
			public.POST("/refresh", handlers.Auth.RefreshToken)
			public.POST("/logout", handlers.Auth.Logout)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			protected.GET("/users/me", handlers.User.GetMe)

			proposals := protected.Group("/proposals")
			{
				proposals.GET("", handlers.Proposal.List)
				proposals.POST("", handlers.Proposal.Create)
				proposals.GET("/:id", handlers.Proposal.Get)
				proposals.POST("/:id/decision", handlers.Proposal.Decide)
			}

			projects := protected.Group("/projects")
			{
				projects.GET("/:id", handlers.Project.Get)
				projects.PATCH("/:id/status", handlers.Project.UpdateStatus)
			}

			conversations := protected.Group("/conversations")
			{
				conversations.GET("", handlers.Conversation.List)
				conversations.POST("", handlers.Conversation.Create)
				conversations.GET("/:id/messages", handlers.Conversation.GetMessages)
				conversations.POST("/:id/messages", rateLimitMiddleware.Limit("messages"), handlers.Conversation.SendMessage)
			}
		}
	}

	ws := router.Group("/ws")
	ws.Use(authMiddleware.RequireAuth())
	{
		ws.GET("/conversations", handlers.WebSocket.Conversations)
		ws.GET("/conversations/:id", handlers.WebSocket.Messages)
	}

	return router
}
