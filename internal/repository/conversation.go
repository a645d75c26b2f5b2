package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"streetart_marketplace/internal/domain"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

type ConversationRepository interface {
	// ListForUser возвращает диалоги пользователя с последним сообщением и числом
	// непрочитанных для userID, сначала самые свежие.
	ListForUser(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// FindOrCreate возвращает диалог пары (художник, владелец стены)
	// и создает его, если его нет. created показывает, была ли вставлена строка.
	FindOrCreate(ctx context.Context, conv *domain.Conversation) (result *domain.Conversation, created bool, err error)
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

const conversationColumns = `id, artist_id, wall_owner_id, project_id, created_at, updated_at`

func (r *conversationRepository) ListForUser(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Conversation, error) {
	column, err := partyColumn(role)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + prefixed("c", conversationColumns) + `,
		       lm.content, lm.created_at, lm.sender_role,
		       (SELECT count(*) FROM messages m
		         WHERE m.conversation_id = c.id AND NOT m.is_read AND m.sender_id <> $1) AS unread_count
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT content, created_at, sender_role
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON true
		WHERE c.` + column + ` = $1
		ORDER BY COALESCE(lm.created_at, c.updated_at) DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*domain.Conversation{}
	for rows.Next() {
		c := &domain.Conversation{}
		var content *string
		var lastAt *time.Time
		var senderRole *domain.Role
		if err := rows.Scan(
			&c.ID, &c.ArtistID, &c.WallOwnerID, &c.ProjectID, &c.CreatedAt, &c.UpdatedAt,
			&content, &lastAt, &senderRole, &c.UnreadCount,
		); err != nil {
			r.log.Error("Failed to scan conversation", "error", err)
			return nil, fmt.Errorf("failed to load conversations: %w", err)
		}
		if content != nil && lastAt != nil && senderRole != nil {
			c.LastMessage = &domain.LastMessage{Content: *content, CreatedAt: *lastAt, SenderRole: *senderRole}
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	c := &domain.Conversation{}
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.ArtistID, &c.WallOwnerID, &c.ProjectID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return c, nil
}

func (r *conversationRepository) FindOrCreate(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, bool, error) {
	// xmax = 0 только у только что вставленных строк
	query := `
		INSERT INTO conversations (id, artist_id, wall_owner_id, project_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT conversations_pair_unique
		DO UPDATE SET project_id = COALESCE(conversations.project_id, EXCLUDED.project_id)
		RETURNING ` + conversationColumns + `, (xmax = 0) AS inserted
	`

	c := &domain.Conversation{}
	var inserted bool
	err := r.db.QueryRow(ctx, query, conv.ID, conv.ArtistID, conv.WallOwnerID, conv.ProjectID).Scan(
		&c.ID, &c.ArtistID, &c.WallOwnerID, &c.ProjectID, &c.CreatedAt, &c.UpdatedAt, &inserted,
	)
	if err != nil {
		r.log.Error("Failed to find or create conversation", "error", err,
			"artist_id", conv.ArtistID, "wall_owner_id", conv.WallOwnerID)
		return nil, false, fmt.Errorf("failed to save conversation: %w", err)
	}
	return c, inserted, nil
}
