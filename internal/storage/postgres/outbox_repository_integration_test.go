package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/expirians/orders-ms/internal/domain"
)

func enqueueTestMessage(t *testing.T, repo domain.OutboxRepository, msg domain.OutboxMessage) domain.OutboxMessage {
	t.Helper()

	stored, err := repo.Enqueue(msg)
	if err != nil {
		t.Fatalf("enqueue outbox message %q: %v", msg.EventType, err)
	}
	return stored
}

func TestOutboxRepository_EnqueuePullAndMark(t *testing.T) {
	store := newMigratedTestStore(t)
	repo := NewOutboxRepository(store)

	created := enqueueTestMessage(t, repo, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "1",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":1}`),
	})
	if created.ID == "" {
		t.Fatal("expected generated id for message enqueued without id")
	}

	changed := enqueueTestMessage(t, repo, domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: "order",
		AggregateID:   "2",
		EventType:     "order.status_changed",
		Payload:       []byte(`{"order_id":2}`),
	})
	if changed.ID != "outbox-fixed-id" {
		t.Fatalf("expected caller-provided id to survive, got %q", changed.ID)
	}

	// PullPending(0) должен подставить дефолтный лимит.
	pending, err := repo.PullPending(0)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats before marks: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected pending=2 before marks, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp to be set")
	}

	if err := repo.MarkSent(created.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(changed.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	after, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected empty backlog after marks, got %d messages", len(after))
	}

	stats, err = repo.Stats()
	if err != nil {
		t.Fatalf("stats after marks: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected pending=0 after marks, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_MarkUnknownID(t *testing.T) {
	store := newMigratedTestStore(t)
	repo := NewOutboxRepository(store)

	for _, mark := range []struct {
		name string
		call func(string) error
	}{
		{name: "sent", call: repo.MarkSent},
		{name: "failed", call: repo.MarkFailed},
	} {
		if err := mark.call("missing-outbox"); !errors.Is(err, domain.ErrOutboxPublish) {
			t.Fatalf("mark %s for unknown id: expected ErrOutboxPublish, got %v", mark.name, err)
		}
	}
}

func TestOutboxRepository_PullReturnsOldestFirst(t *testing.T) {
	store := newMigratedTestStore(t)
	repo := NewOutboxRepository(store)

	oldest := enqueueTestMessage(t, repo, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "10",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":10}`),
	})

	// Таймстемпы created_at должны различаться, иначе порядок решает id.
	time.Sleep(5 * time.Millisecond)

	enqueueTestMessage(t, repo, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "11",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":11}`),
	})

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].ID != oldest.ID {
		t.Fatalf("expected oldest message first, got %s", pending[0].ID)
	}
}
