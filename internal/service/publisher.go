package service

import (
	"context"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

// publisher отправляет зафиксированные изменения в ленту. Ошибка публикации
// логируется и не возвращается: сама запись уже сохранена.
type publisher struct {
	feed repository.ChangeFeed
	log  logger.Logger
}

func (p publisher) table(ctx context.Context, table string, typ domain.ChangeType, id uuid.UUID, record any, parties ...uuid.UUID) {
	p.publish(ctx, p.feed.TableChannel(table), table, typ, id, record, parties)
}

func (p publisher) messages(ctx context.Context, conversationID uuid.UUID, typ domain.ChangeType, msg *domain.Message, parties ...uuid.UUID) {
	p.publish(ctx, p.feed.MessagesChannel(conversationID), domain.TableMessages, typ, msg.ID, msg, parties)
}

func (p publisher) publish(ctx context.Context, channel, table string, typ domain.ChangeType, id uuid.UUID, record any, parties []uuid.UUID) {
	event, err := domain.NewChangeEvent(table, typ, id, record, parties...)
	if err != nil {
		p.log.Error("Failed to build change event", "error", err, "table", table)
		return
	}
	if err := p.feed.Publish(ctx, channel, event); err != nil {
		p.log.Warn("Change event not published", "error", err, "channel", channel, "id", id)
	}
}
