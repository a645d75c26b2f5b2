package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func publish(t *testing.T, feed repository.ChangeFeed, channel string, typ domain.ChangeType, id uuid.UUID, record any, parties ...uuid.UUID) {
	t.Helper()
	event, err := domain.NewChangeEvent(domain.TableMessages, typ, id, record, parties...)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := feed.Publish(context.Background(), channel, event); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func msg(convID uuid.UUID, offset time.Duration, content string) *domain.Message {
	return &domain.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		SenderID:       uuid.New(),
		SenderRole:     domain.RoleArtist,
		Content:        content,
		CreatedAt:      base.Add(offset),
	}
}

func contents(ms []*domain.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Content
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConversationListReloadsOnVisibleEvents(t *testing.T) {
	feed := repository.NewMemoryChangeFeed("test")
	actor := domain.Actor{ID: uuid.New(), Role: domain.RoleArtist}

	var loads atomic.Int32
	load := func(ctx context.Context) ([]*domain.Conversation, error) {
		n := loads.Add(1)
		out := make([]*domain.Conversation, n)
		for i := range out {
			out[i] = &domain.Conversation{ID: uuid.New(), ArtistID: actor.ID}
		}
		return out, nil
	}

	list, err := NewConversationList(context.Background(), feed, actor, load, logger.Nop())
	if err != nil {
		t.Fatalf("new list: %v", err)
	}
	defer list.Close()
	if len(list.Snapshot()) != 1 {
		t.Fatalf("initial snapshot = %d", len(list.Snapshot()))
	}

	channel := feed.TableChannel(domain.TableConversations)
	// не участник: игнорируется
	publish(t, feed, channel, domain.ChangeInsert, uuid.New(), map[string]string{}, uuid.New())
	publish(t, feed, channel, domain.ChangeUpdate, uuid.New(), map[string]string{}, actor.ID)

	select {
	case snap := <-list.Updates():
		if len(snap) != 2 {
			t.Fatalf("reloaded snapshot = %d, want 2", len(snap))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("list was not reloaded")
	}
	if got := loads.Load(); got != 2 {
		t.Fatalf("loads = %d, want 2", got)
	}
}

func TestConversationListCloseUnsubscribes(t *testing.T) {
	feed := repository.NewMemoryChangeFeed("test")
	actor := domain.Actor{ID: uuid.New(), Role: domain.RoleWallOwner}

	var loads atomic.Int32
	list, err := NewConversationList(context.Background(), feed, actor, func(ctx context.Context) ([]*domain.Conversation, error) {
		loads.Add(1)
		return nil, nil
	}, logger.Nop())
	if err != nil {
		t.Fatalf("new list: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	publish(t, feed, feed.TableChannel(domain.TableConversations), domain.ChangeUpdate, uuid.New(), nil, actor.ID)
	time.Sleep(20 * time.Millisecond)
	if got := loads.Load(); got != 1 {
		t.Fatalf("closed list reloaded: loads = %d", got)
	}
}

func TestNewConversationListLoadError(t *testing.T) {
	feed := repository.NewMemoryChangeFeed("test")
	_, err := NewConversationList(context.Background(), feed, domain.Actor{ID: uuid.New()}, func(ctx context.Context) ([]*domain.Conversation, error) {
		return nil, errors.New("db down")
	}, logger.Nop())
	if err == nil {
		t.Fatal("expected load error")
	}
}

func newFeed(t *testing.T, feed repository.ChangeFeed, convID uuid.UUID, initial []*domain.Message, send MessageSender) *MessageFeed {
	t.Helper()
	f, err := NewMessageFeed(context.Background(), feed, domain.Actor{ID: uuid.New(), Role: domain.RoleWallOwner}, convID,
		func(ctx context.Context) ([]*domain.Message, error) { return initial, nil }, send, logger.Nop())
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestMessageFeedAppendsInsertsInOrder(t *testing.T) {
	feed := repository.NewMemoryChangeFeed("test")
	convID := uuid.New()
	first := msg(convID, 0, "one")
	third := msg(convID, 2*time.Second, "three")
	f := newFeed(t, feed, convID, []*domain.Message{first, third}, nil)

	channel := feed.MessagesChannel(convID)
	second := msg(convID, time.Second, "two")
	publish(t, feed, channel, domain.ChangeInsert, second.ID, second)
	// доставка at-least-once
	publish(t, feed, channel, domain.ChangeInsert, second.ID, second)
	publish(t, feed, channel, domain.ChangeInsert, first.ID, first)
	// обновления не добавляются
	edited := *third
	edited.Content = "edited"
	publish(t, feed, channel, domain.ChangeUpdate, third.ID, &edited)
	fourth := msg(convID, 3*time.Second, "four")
	publish(t, feed, channel, domain.ChangeInsert, fourth.ID, fourth)

	want := []string{"one", "two", "three", "four"}
	waitFor(t, func() bool { return len(f.Messages()) == len(want) })
	time.Sleep(20 * time.Millisecond)
	if got := contents(f.Messages()); !equal(got, want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
}

func TestMessageFeedOptimisticSendConfirmed(t *testing.T) {
	feed := repository.NewMemoryChangeFeed("test")
	convID := uuid.New()

	release := make(chan struct{})
	var confirmed *domain.Message
	send := func(ctx context.Context, content, clientID string) (*domain.Message, error) {
		<-release
		m := msg(convID, time.Minute, content)
		m.ClientID = &clientID
		confirmed = m
		// событие вставки приходит раньше, чем завершается запись
		event, err := domain.NewChangeEvent(domain.TableMessages, domain.ChangeInsert, m.ID, m)
		if err != nil {
			return nil, err
		}
		return m, feed.Publish(ctx, feed.MessagesChannel(convID), event)
	}
	f := newFeed(t, feed, convID, []*domain.Message{msg(convID, 0, "hello")}, send)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := f.Send(context.Background(), "on my way"); err != nil {
			t.Errorf("send: %v", err)
		}
	}()

	waitFor(t, func() bool { return len(f.Messages()) == 2 })
	pending := f.Messages()[1]
	if !pending.Pending || pending.Content != "on my way" {
		t.Fatalf("expected a pending entry, got %+v", pending)
	}

	close(release)
	wg.Wait()
	waitFor(t, func() bool {
		ms := f.Messages()
		return len(ms) == 2 && !ms[1].Pending
	})
	time.Sleep(20 * time.Millisecond)
	ms := f.Messages()
	if len(ms) != 2 || ms[1].ID != confirmed.ID {
		t.Fatalf("pending entry not replaced exactly once: %v", contents(ms))
	}
}

func TestMessageFeedOptimisticSendFailure(t *testing.T) {
	feed := repository.NewMemoryChangeFeed("test")
	convID := uuid.New()
	f := newFeed(t, feed, convID, nil, func(ctx context.Context, content, clientID string) (*domain.Message, error) {
		return nil, errors.New("write failed")
	})

	if _, err := f.Send(context.Background(), "lost"); err == nil {
		t.Fatal("expected send error")
	}
	if n := len(f.Messages()); n != 0 {
		t.Fatalf("failed send left %d entries", n)
	}

	got, err := f.Send(context.Background(), "   ")
	if got != nil || err != nil {
		t.Fatalf("blank send: got (%v, %v)", got, err)
	}
}

func TestMessageFeedIgnoresOtherConversations(t *testing.T) {
	feed := repository.NewMemoryChangeFeed("test")
	convID := uuid.New()
	f := newFeed(t, feed, convID, nil, nil)

	stray := msg(uuid.New(), 0, "stray")
	publish(t, feed, feed.MessagesChannel(convID), domain.ChangeInsert, stray.ID, stray)
	mine := msg(convID, time.Second, "mine")
	publish(t, feed, feed.MessagesChannel(convID), domain.ChangeInsert, mine.ID, mine)

	waitFor(t, func() bool { return len(f.Messages()) > 0 })
	time.Sleep(20 * time.Millisecond)
	if got := contents(f.Messages()); !equal(got, []string{"mine"}) {
		t.Fatalf("messages = %v", got)
	}
}

func TestMessageFeedLatestUpdateMatchesStateAfterFailedSend(t *testing.T) {
	for i := 0; i < 50; i++ {
		feed := repository.NewMemoryChangeFeed("test")
		convID := uuid.New()
		other := msg(convID, time.Second, "from the other party")
		f := newFeed(t, feed, convID, nil, func(ctx context.Context, content, clientID string) (*domain.Message, error) {
			// посторонняя вставка приходит, пока запись падает
			publish(t, feed, feed.MessagesChannel(convID), domain.ChangeInsert, other.ID, other)
			return nil, errors.New("write failed")
		})

		if _, err := f.Send(context.Background(), "ghost"); err == nil {
			t.Fatal("expected send error")
		}
		waitFor(t, func() bool { return len(f.Messages()) == 1 })

		select {
		case latest := <-f.Updates():
			if got := contents(latest); !equal(got, []string{"from the other party"}) {
				t.Fatalf("run %d: latest update = %v", i, got)
			}
		default:
			t.Fatalf("run %d: no update published", i)
		}
		f.Close()
	}
}
