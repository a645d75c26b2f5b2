package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
)

func TestChannelNames(t *testing.T) {
	feed := NewMemoryChangeFeed("changes")
	if got := feed.TableChannel(domain.TableConversations); got != "changes:conversations" {
		t.Fatalf("table channel = %q", got)
	}
	id := uuid.MustParse("7f0c1f1e-4a59-4e0e-9d55-3f7a4e4f9f10")
	if got := feed.MessagesChannel(id); got != "changes:conversation:7f0c1f1e-4a59-4e0e-9d55-3f7a4e4f9f10:messages" {
		t.Fatalf("messages channel = %q", got)
	}
}

func TestMemoryChangeFeedDelivery(t *testing.T) {
	ctx := context.Background()
	feed := NewMemoryChangeFeed("changes")
	channel := feed.TableChannel(domain.TableProposals)

	sub, err := feed.Subscribe(ctx, channel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	other, _ := feed.Subscribe(ctx, feed.TableChannel(domain.TableProjects))

	event := domain.ChangeEvent{Table: domain.TableProposals, Type: domain.ChangeInsert, ID: uuid.New()}
	if err := feed.Publish(ctx, channel, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-sub.Events():
		if got.ID != event.ID {
			t.Fatalf("got event %v, want %v", got.ID, event.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case got := <-other.Events():
		t.Fatalf("unrelated subscriber received %v", got)
	default:
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("events channel must be closed after unsubscribe")
	}
	// повторная отписка ничего не ломает
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second unsubscribe: %v", err)
	}
	if err := feed.Publish(ctx, channel, event); err != nil {
		t.Fatalf("publish after unsubscribe: %v", err)
	}
	_ = other.Unsubscribe()
}
