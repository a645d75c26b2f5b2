package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

// MessageLoader возвращает переписку, начиная со старых сообщений.
type MessageLoader func(ctx context.Context) ([]*domain.Message, error)

// MessageSender сохраняет сообщение с clientID. nil-сообщение без ошибки
// означает, что ничего не сохранено.
type MessageSender func(ctx context.Context, content, clientID string) (*domain.Message, error)

// MessageFeed - живая переписка одного диалога. Подтвержденные сообщения
// упорядочены по created_at; оптимистичные записи идут за ними, пока сервер
// их не подтвердит или не отклонит.
type MessageFeed struct {
	actor          domain.Actor
	conversationID uuid.UUID
	send           MessageSender
	sub            repository.Subscription
	log            logger.Logger
	updates        chan []*domain.Message

	mu        sync.RWMutex
	confirmed []*domain.Message
	seen      map[uuid.UUID]bool
	pending   []*domain.Message

	done      chan struct{}
	closeOnce sync.Once
}

func NewMessageFeed(
	ctx context.Context,
	feed repository.ChangeFeed,
	actor domain.Actor,
	conversationID uuid.UUID,
	load MessageLoader,
	send MessageSender,
	log logger.Logger,
) (*MessageFeed, error) {
	// подписываемся до загрузки, чтобы не потерять вставки во время нее;
	// дубли отсекаются по id
	sub, err := feed.Subscribe(ctx, feed.MessagesChannel(conversationID))
	if err != nil {
		return nil, err
	}

	initial, err := load(ctx)
	if err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	f := &MessageFeed{
		actor:          actor,
		conversationID: conversationID,
		send:           send,
		sub:            sub,
		log:            log.With("view", "messages", "conversation_id", conversationID),
		updates:        make(chan []*domain.Message, 1),
		seen:           make(map[uuid.UUID]bool, len(initial)),
		done:           make(chan struct{}),
	}
	for _, m := range initial {
		f.insertLocked(m)
	}
	go f.run()
	return f, nil
}

func (f *MessageFeed) run() {
	defer close(f.done)
	for event := range f.sub.Events() {
		// обновления и удаления не отображаются, переписка только дополняется
		if event.Type != domain.ChangeInsert {
			continue
		}
		var m domain.Message
		if err := json.Unmarshal(event.Record, &m); err != nil {
			f.log.Warn("Dropping undecodable message event", "error", err, "id", event.ID)
			continue
		}
		if m.ConversationID != f.conversationID {
			continue
		}
		f.apply(&m)
	}
}

// apply добавляет подтвержденное сообщение и сообщает, изменилось ли представление.
func (f *MessageFeed) apply(m *domain.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := f.insertLocked(m)
	if changed {
		f.publishLocked()
	}
	return changed
}

// publishLocked передает текущее состояние в Updates. Вызывается под f.mu,
// чтобы снимки попадали в канал в порядке их создания.
func (f *MessageFeed) publishLocked() {
	publishLatest(f.updates, f.snapshotLocked())
}

func (f *MessageFeed) insertLocked(m *domain.Message) bool {
	if f.seen[m.ID] {
		return false
	}
	f.seen[m.ID] = true

	if m.ClientID != nil {
		f.dropPendingLocked(*m.ClientID)
	}

	cp := *m
	cp.Pending = false
	i := sort.Search(len(f.confirmed), func(i int) bool {
		return f.confirmed[i].CreatedAt.After(cp.CreatedAt)
	})
	f.confirmed = append(f.confirmed, nil)
	copy(f.confirmed[i+1:], f.confirmed[i:])
	f.confirmed[i] = &cp
	return true
}

func (f *MessageFeed) dropPendingLocked(clientID string) bool {
	for i, p := range f.pending {
		if p.ClientID != nil && *p.ClientID == clientID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Send сразу показывает content как ожидающую запись, затем сохраняет его.
// Ожидающая запись заменяется подтвержденным сообщением или удаляется,
// если запись не удалась. Пустой content игнорируется.
func (f *MessageFeed) Send(ctx context.Context, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	clientID := uuid.NewString()
	f.mu.Lock()
	f.pending = append(f.pending, &domain.Message{
		ConversationID: f.conversationID,
		SenderID:       f.actor.ID,
		SenderRole:     f.actor.Role,
		Content:        content,
		ClientID:       &clientID,
		CreatedAt:      time.Now(),
		Pending:        true,
	})
	f.publishLocked()
	f.mu.Unlock()

	message, err := f.send(ctx, content, clientID)
	if err != nil || message == nil {
		f.mu.Lock()
		f.dropPendingLocked(clientID)
		f.publishLocked()
		f.mu.Unlock()
		return nil, err
	}

	// событие вставки могло уже подтвердить его
	f.apply(message)
	return message, nil
}

// Messages возвращает подтвержденные сообщения, за ними ожидающие.
func (f *MessageFeed) Messages() []*domain.Message {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshotLocked()
}

func (f *MessageFeed) snapshotLocked() []*domain.Message {
	out := make([]*domain.Message, 0, len(f.confirmed)+len(f.pending))
	out = append(out, f.confirmed...)
	out = append(out, f.pending...)
	return out
}

func (f *MessageFeed) Updates() <-chan []*domain.Message { return f.updates }

// Close освобождает подписку на ленту.
func (f *MessageFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		err = f.sub.Unsubscribe()
		<-f.done
	})
	return err
}
