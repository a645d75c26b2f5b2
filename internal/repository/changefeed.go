package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/pkg/logger"
)

// ChangeFeed публикует события изменения строк и дает представлениям подписываться на них.
type ChangeFeed interface {
	Publish(ctx context.Context, channel string, event domain.ChangeEvent) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	TableChannel(table string) string
	MessagesChannel(conversationID uuid.UUID) string
}

// Subscription нужно освободить через Unsubscribe, когда подписчик уходит.
type Subscription interface {
	Events() <-chan domain.ChangeEvent
	Unsubscribe() error
}

type channelNames struct {
	prefix string
}

func (n channelNames) TableChannel(table string) string {
	return fmt.Sprintf("%s:%s", n.prefix, table)
}

func (n channelNames) MessagesChannel(conversationID uuid.UUID) string {
	return fmt.Sprintf("%s:conversation:%s:messages", n.prefix, conversationID)
}

type redisChangeFeed struct {
	channelNames
	rdb *redis.Client
	log logger.Logger
}

func NewRedisChangeFeed(rdb *redis.Client, prefix string, log logger.Logger) ChangeFeed {
	return &redisChangeFeed{channelNames: channelNames{prefix: prefix}, rdb: rdb, log: log}
}

func (f *redisChangeFeed) Publish(ctx context.Context, channel string, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := f.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		f.log.Error("Failed to publish change event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

func (f *redisChangeFeed) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	pubsub := f.rdb.Subscribe(ctx, channels...)
	// ждем подтверждения подписки, чтобы не пропустить события,
	// опубликованные после возврата из Subscribe
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		f.log.Error("Failed to subscribe", "error", err, "channels", channels)
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan domain.ChangeEvent, 64),
		done:   make(chan struct{}),
	}
	go sub.pump(f.log)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan domain.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) pump(log logger.Logger) {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var event domain.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn("Dropping malformed change event", "error", err, "channel", msg.Channel)
			continue
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan domain.ChangeEvent { return s.events }

func (s *redisSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// memoryChangeFeed доставляет события внутри процесса. Используется в тестах
// и при запуске одного экземпляра без Redis.
type memoryChangeFeed struct {
	channelNames
	mu   sync.RWMutex
	subs map[*memorySubscription]map[string]bool
}

func NewMemoryChangeFeed(prefix string) ChangeFeed {
	return &memoryChangeFeed{
		channelNames: channelNames{prefix: prefix},
		subs:         make(map[*memorySubscription]map[string]bool),
	}
}

func (f *memoryChangeFeed) Publish(ctx context.Context, channel string, event domain.ChangeEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub, channels := range f.subs {
		if !channels[channel] {
			continue
		}
		// подписчик с заполненным буфером пропускает событие
		select {
		case sub.events <- event:
		default:
		}
	}
	return ctx.Err()
}

func (f *memoryChangeFeed) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	set := make(map[string]bool, len(channels))
	for _, c := range channels {
		set[c] = true
	}
	sub := &memorySubscription{feed: f, events: make(chan domain.ChangeEvent, 64)}
	f.mu.Lock()
	f.subs[sub] = set
	f.mu.Unlock()
	return sub, nil
}

func (f *memoryChangeFeed) remove(sub *memorySubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.events)
	}
}

type memorySubscription struct {
	feed   *memoryChangeFeed
	events chan domain.ChangeEvent
}

func (s *memorySubscription) Events() <-chan domain.ChangeEvent { return s.events }

func (s *memorySubscription) Unsubscribe() error {
	s.feed.remove(s)
	return nil
}
