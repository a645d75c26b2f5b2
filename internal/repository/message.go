package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/pkg/logger"
)

type MessageRepository interface {
	// Create сохраняет сообщение и обновляет updated_at диалога.
	Create(ctx context.Context, message *domain.Message) error
	// ListAndMarkRead помечает прочитанными все сообщения не от readerID
	// и возвращает все сообщения, начиная со старых.
	ListAndMarkRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]*domain.Message, int64, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO messages (id, conversation_id, sender_id, sender_role, content, client_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING is_read, created_at
		`
		if err := tx.QueryRow(ctx, query,
			message.ID, message.ConversationID, message.SenderID, message.SenderRole,
			message.Content, message.ClientID,
		).Scan(&message.IsRead, &message.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, message.ConversationID)
		return err
	})
	if err != nil {
		r.log.Error("Failed to create message", "error", err, "conversation_id", message.ConversationID)
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (r *messageRepository) ListAndMarkRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]*domain.Message, int64, error) {
	var messages []*domain.Message
	var marked int64

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE messages
			SET is_read = true
			WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read
		`, conversationID, readerID)
		if err != nil {
			return err
		}
		marked = tag.RowsAffected()

		rows, err := tx.Query(ctx, `
			SELECT id, conversation_id, sender_id, sender_role, content, is_read, client_id, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at ASC, id ASC
		`, conversationID)
		if err != nil {
			return err
		}
		defer rows.Close()

		messages = []*domain.Message{}
		for rows.Next() {
			m := &domain.Message{}
			if err := rows.Scan(
				&m.ID, &m.ConversationID, &m.SenderID, &m.SenderRole,
				&m.Content, &m.IsRead, &m.ClientID, &m.CreatedAt,
			); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		r.log.Error("Failed to list messages", "error", err, "conversation_id", conversationID)
		return nil, 0, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, marked, nil
}
