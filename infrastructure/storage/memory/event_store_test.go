package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/memory"
)

func mustEvent(t *testing.T, thread string, typ event.Type) event.Event {
	t.Helper()
	e, err := event.NewEvent(thread, typ, map[string]string{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEventStore_AppendAssignsSequence(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	ctx := context.Background()

	if err := store.Append(ctx, mustEvent(t, "t1", event.TypeStart), mustEvent(t, "t2", event.TypeStart)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, mustEvent(t, "t1", event.TypeIntent), mustEvent(t, "t1", event.TypeComplete)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := store.LoadEvents(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("LoadEvents() = %d events, want 3", len(events))
	}
	for i, e := range events {
		if e.Sequence != uint64(i+1) {
			t.Errorf("events[%d].Sequence = %d, want %d", i, e.Sequence, i+1)
		}
		if e.ID == "" {
			t.Errorf("events[%d] has no id", i)
		}
	}
	if !events[2].IsTerminal() {
		t.Error("last event should be terminal")
	}

	from, err := store.LoadEventsFrom(ctx, "t1", 2)
	if err != nil || len(from) != 2 {
		t.Errorf("LoadEventsFrom(2) = %d events, %v", len(from), err)
	}

	threads, err := store.Threads(ctx)
	if err != nil || len(threads) != 2 || threads[0] != "t1" {
		t.Errorf("Threads() = %v, %v", threads, err)
	}
	if store.Len() != 4 {
		t.Errorf("Len() = %d, want 4", store.Len())
	}
}

func TestEventStore_RejectsInvalid(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	err := store.Append(context.Background(), mustEvent(t, "t1", event.TypeStart), event.Event{ThreadID: "t1"})
	if !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append() error = %v, want ErrInvalidEvent", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after rejected batch", store.Len())
	}
}

func TestEventStore_DeleteThread(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	ctx := context.Background()
	if err := store.Append(ctx, mustEvent(t, "t1", event.TypeStart)); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteThread(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	events, err := store.LoadEvents(ctx, "t1")
	if err != nil || len(events) != 0 {
		t.Errorf("LoadEvents() after delete = %v, %v", events, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.LoadEvents(ctx, "t1"); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadEvents(cancelled) error = %v", err)
	}
}
