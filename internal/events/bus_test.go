package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukanlabs/checkout-api/internal/events"
	"github.com/dukanlabs/checkout-api/internal/store"
)

type memEventStore struct {
	events []store.DomainEvent
}

func (m *memEventStore) InsertDomainEvent(_ context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (store.DomainEvent, error) {
	ev := store.DomainEvent{
		ID:          store.NewUUID(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
	}
	m.events = append(m.events, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []store.DomainEvent
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	n.seen = append(n.seen, event)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	mem := &memEventStore{}
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: mem, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderSettled, store.NewUUID(), map[string]any{"amount": 960})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if ev.Topic != events.TopicOrderSettled {
		t.Fatalf("topic = %q, want %q", ev.Topic, events.TopicOrderSettled)
	}
	var decoded map[string]any
	if err := json.Unmarshal(ev.Payload, &decoded); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if len(mem.events) != 1 || len(notifier.seen) != 1 {
		t.Fatalf("persisted=%d notified=%d, want 1/1", len(mem.events), len(notifier.seen))
	}
}

func TestEmitRejectsInvalidInput(t *testing.T) {
	bus := &events.Bus{Store: &memEventStore{}}

	if _, err := bus.Emit(context.Background(), "", store.NewUUID(), nil); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if _, err := bus.Emit(context.Background(), events.TopicOrderCreated, pgtype.UUID{}, nil); err == nil {
		t.Fatal("expected error for missing aggregate id")
	}
	if _, err := bus.Emit(context.Background(), events.TopicOrderCreated, store.NewUUID(), []byte("{not json")); err == nil {
		t.Fatal("expected error for invalid json payload")
	}
}

func TestEmitCollectsNotifierErrors(t *testing.T) {
	mem := &memEventStore{}
	failing := &recordingNotifier{err: errors.New("boom")}
	bus := &events.Bus{Store: mem, Notifiers: []events.Notifier{failing}}

	if _, err := bus.Emit(context.Background(), events.TopicOrderCreated, store.NewUUID(), nil); err == nil {
		t.Fatal("expected notifier error to surface")
	}
	if len(mem.events) != 1 {
		t.Fatal("event must persist even when a notifier fails")
	}
}
