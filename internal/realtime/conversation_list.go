// Package realtime поддерживает серверные представления диалогов и сообщений
// в актуальном состоянии по ленте изменений. Вебсокеты отдают эти представления клиентам.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

// ConversationLoader возвращает диалоги пользователя с превью и числом непрочитанных.
type ConversationLoader func(ctx context.Context) ([]*domain.Conversation, error)

// ConversationList - живой список диалогов пользователя. Любое событие,
// видимое пользователю, вызывает полную перезагрузку.
type ConversationList struct {
	actor   domain.Actor
	load    ConversationLoader
	sub     repository.Subscription
	log     logger.Logger
	updates chan []*domain.Conversation

	mu            sync.RWMutex
	conversations []*domain.Conversation
	loading       bool

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewConversationList(ctx context.Context, feed repository.ChangeFeed, actor domain.Actor, load ConversationLoader, log logger.Logger) (*ConversationList, error) {
	sub, err := feed.Subscribe(ctx, feed.TableChannel(domain.TableConversations))
	if err != nil {
		return nil, err
	}

	initial, err := load(ctx)
	if err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l := &ConversationList{
		actor:         actor,
		load:          load,
		sub:           sub,
		log:           log.With("view", "conversations", "user_id", actor.ID),
		updates:       make(chan []*domain.Conversation, 1),
		conversations: initial,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go l.run(runCtx)
	return l, nil
}

func (l *ConversationList) run(ctx context.Context) {
	defer close(l.done)
	for event := range l.sub.Events() {
		if !event.VisibleTo(l.actor.ID) {
			continue
		}
		l.reload(ctx)
	}
}

func (l *ConversationList) reload(ctx context.Context) {
	l.mu.Lock()
	l.loading = true
	l.mu.Unlock()

	conversations, err := l.load(ctx)

	l.mu.Lock()
	l.loading = false
	if err != nil {
		l.mu.Unlock()
		if ctx.Err() == nil {
			l.log.Warn("Conversation reload failed", "error", err)
		}
		return
	}
	l.conversations = conversations
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	publishLatest(l.updates, snapshot)
}

// Snapshot возвращает копию текущего списка.
func (l *ConversationList) Snapshot() []*domain.Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *ConversationList) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}

func (l *ConversationList) snapshotLocked() []*domain.Conversation {
	out := make([]*domain.Conversation, len(l.conversations))
	copy(out, l.conversations)
	return out
}

// Updates отдает список после каждой перезагрузки. Для медленного читателя
// хранится только последний снимок.
func (l *ConversationList) Updates() <-chan []*domain.Conversation { return l.updates }

// Close освобождает подписку и останавливает перезагрузки.
func (l *ConversationList) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.cancel()
		err = l.sub.Unsubscribe()
		<-l.done
	})
	return err
}

// publishLatest заменяет недоставленное значение в ch на v.
func publishLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
