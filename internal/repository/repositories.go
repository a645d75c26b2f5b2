package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"streetart_marketplace/pkg/logger"
)

type Repositories struct {
	User         UserRepository
	Proposal     ProposalRepository
	Project      ProjectRepository
	Conversation ConversationRepository
	Message      MessageRepository
	Audit        AuditRepository
	RateLimit    RateLimitRepository
	ChangeFeed   ChangeFeed
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, channelPrefix string, log logger.Logger) *Repositories {
	repos := &Repositories{
		User:         NewUserRepository(db, log),
		Proposal:     NewProposalRepository(db, log),
		Project:      NewProjectRepository(db, log),
		Conversation: NewConversationRepository(db, log),
		Message:      NewMessageRepository(db, log),
		Audit:        NewAuditRepository(db, log),
		RateLimit:    NewRateLimitRepository(rdb, log),
		ChangeFeed:   NewRedisChangeFeed(rdb, channelPrefix, log),
	}

	log.Info("Repositories initialized", "change_feed_prefix", channelPrefix)

	return repos
}
