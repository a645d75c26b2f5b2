package service

import (
	"streetart_marketplace/internal/config"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

type Services struct {
	Auth         AuthService
	User         UserService
	Lifecycle    LifecycleService
	Conversation ConversationService
	RateLimit    RateLimitService
	Audit        AuditService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)

	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		User:      NewUserService(repos.User, log),
		Lifecycle: NewLifecycleService(repos.Proposal, repos.Project, repos.User, audit, repos.ChangeFeed, log),
		Conversation: NewConversationService(
			repos.Conversation, repos.Message, repos.Project, repos.User, audit, repos.ChangeFeed, log,
		),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
		Audit:     audit,
	}
}
