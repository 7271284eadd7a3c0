package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/sqlite"
)

func TestNewEventStore(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := sqlite.Config{
		DSN:         "file:" + tmpDir + "/test.db?mode=rwc",
		AutoMigrate: true,
	}

	store, err := sqlite.NewEventStore(cfg)
	if err != nil {
		t.Fatalf("NewEventStore failed: %v", err)
	}
	defer store.Close()
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	events := []event.Event{
		{ThreadID: "t1", Type: event.TypeStart},
		{ThreadID: "t1", Type: event.TypeIntent},
		{ThreadID: "t2", Type: event.TypeStart},
		{ThreadID: "t1", Type: event.TypeComplete},
	}
	if err := store.Append(ctx, events...); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	loaded, err := store.LoadEvents(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadEvents failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 events, got %d", len(loaded))
	}
	for i, e := range loaded {
		if e.Sequence != uint64(i+1) {
			t.Errorf("expected sequence %d, got %d", i+1, e.Sequence)
		}
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Errorf("event %d missing id or timestamp: %+v", i, e)
		}
	}
	if !loaded[2].IsTerminal() {
		t.Errorf("last event %s should be terminal", loaded[2].Type)
	}

	if err := store.Append(ctx, event.Event{ThreadID: "t1", Type: event.TypeChunk}); err != nil {
		t.Fatal(err)
	}
	from, err := store.LoadEventsFrom(ctx, "t1", 3)
	if err != nil {
		t.Fatalf("LoadEventsFrom failed: %v", err)
	}
	if len(from) != 2 || from[1].Sequence != 4 {
		t.Errorf("LoadEventsFrom(3) = %+v", from)
	}
}

func TestEventStore_ThreadsAndDelete(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "b"} {
		if err := store.Append(ctx, event.Event{ThreadID: id, Type: event.TypeStart}); err != nil {
			t.Fatal(err)
		}
	}

	threads, err := store.Threads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 || threads[0] != "a" || threads[1] != "b" {
		t.Errorf("Threads() = %v, want [a b]", threads)
	}

	count, err := store.CountEvents(ctx, "b")
	if err != nil || count != 2 {
		t.Errorf("CountEvents(b) = %d, %v; want 2", count, err)
	}

	if err := store.DeleteThread(ctx, "b"); err != nil {
		t.Fatalf("DeleteThread failed: %v", err)
	}
	count, err = store.CountEvents(ctx, "b")
	if err != nil || count != 0 {
		t.Errorf("CountEvents(b) after delete = %d, %v; want 0", count, err)
	}
}

func TestEventStore_Subscribe(t *testing.T) {
	store := newTestEventStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Subscribe(ctx, "live")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := store.Append(context.Background(), event.Event{ThreadID: "live", Type: event.TypeChunk}); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-ch:
		if e.Type != event.TypeChunk || e.Sequence != 1 {
			t.Errorf("received %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestEventStore_AppendInvalidEvent(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	err := store.Append(ctx,
		event.Event{ThreadID: "t", Type: event.TypeStart},
		event.Event{ThreadID: "t"},
	)
	if !errors.Is(err, event.ErrInvalidEvent) {
		t.Errorf("Append() error = %v, want ErrInvalidEvent", err)
	}

	loaded, err := store.LoadEvents(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("invalid batch was partially stored: %d events", len(loaded))
	}

	if err := store.Append(ctx); err != nil {
		t.Errorf("Append() with no events error = %v", err)
	}
}

func TestEventStore_ContextCancelled(t *testing.T) {
	store := newTestEventStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Append(ctx, event.Event{ThreadID: "t", Type: event.TypeStart}); !errors.Is(err, context.Canceled) {
		t.Errorf("Append() error = %v, want context.Canceled", err)
	}
	if _, err := store.LoadEvents(ctx, "t"); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadEvents() error = %v, want context.Canceled", err)
	}
}

func newTestEventStore(t *testing.T) *sqlite.EventStore {
	t.Helper()

	store, err := sqlite.NewEventStore(sqlite.Config{
		DSN:         "file:" + t.TempDir() + "/events.db?mode=rwc",
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("NewEventStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
