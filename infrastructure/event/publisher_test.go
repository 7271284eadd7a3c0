package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	domainevent "github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/infrastructure/event"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ev(thread string, typ domainevent.Type) domainevent.Event {
	return domainevent.Event{ThreadID: thread, Type: typ, Timestamp: time.Now()}
}

func receive(t *testing.T, ch <-chan domainevent.Event) domainevent.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domainevent.Event{}
}

func TestPublisher_FanOut(t *testing.T) {
	t.Parallel()

	p := event.NewPublisher()
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := p.Subscribe(ctx, "t1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	b, err := p.Subscribe(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	other, err := p.Subscribe(ctx, "t2")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Subscribers("t1"); got != 2 {
		t.Errorf("Subscribers(t1) = %d, want 2", got)
	}

	if err := p.Publish(ctx, ev("t1", domainevent.TypeStart), ev("t1", domainevent.TypeIntent)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, ch := range []<-chan domainevent.Event{a, b} {
		first, second := receive(t, ch), receive(t, ch)
		if first.Sequence != 1 || second.Sequence != 2 {
			t.Errorf("sequences = %d, %d; want 1, 2", first.Sequence, second.Sequence)
		}
		if first.ID == "" {
			t.Error("event id not assigned")
		}
	}

	select {
	case e := <-other:
		t.Errorf("t2 subscriber received %+v", e)
	default:
	}
}

func TestPublisher_TerminalResetsSequence(t *testing.T) {
	t.Parallel()

	p := event.NewPublisher()
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := p.Subscribe(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Publish(ctx, ev("t", domainevent.TypeStart), ev("t", domainevent.TypeComplete), ev("t", domainevent.TypeStart)); err != nil {
		t.Fatal(err)
	}
	for i, want := range []uint64{1, 2, 1} {
		if got := receive(t, ch).Sequence; got != want {
			t.Errorf("event %d sequence = %d, want %d", i, got, want)
		}
	}
}

func TestPublisher_DropsOnFullBuffer(t *testing.T) {
	t.Parallel()

	p := event.NewPublisher(event.WithBufferSize(2))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := p.Subscribe(ctx, "slow")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := p.Publish(ctx, ev("slow", domainevent.TypeChunk)); err != nil {
			t.Fatalf("Publish() blocked or failed: %v", err)
		}
	}
	if got := p.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	if got := receive(t, ch).Sequence; got != 1 {
		t.Errorf("first buffered sequence = %d, want 1", got)
	}
}

func TestPublisher_CancelClosesSubscription(t *testing.T) {
	t.Parallel()

	p := event.NewPublisher()
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Subscribe(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}

	if err := p.Publish(context.Background(), ev("t", domainevent.TypeChunk)); err != nil {
		t.Errorf("Publish() after unsubscribe error = %v", err)
	}
	if got := p.Subscribers("t"); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}
}

func TestPublisher_Close(t *testing.T) {
	t.Parallel()

	p := event.NewPublisher()
	ch, err := p.Subscribe(context.Background(), "t")
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel closed by Close")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Publish(context.Background(), ev("t", domainevent.TypeStart)); !errors.Is(err, domainevent.ErrPublisherClosed) {
		t.Errorf("Publish() error = %v, want ErrPublisherClosed", err)
	}
	if _, err := p.Subscribe(context.Background(), "t"); !errors.Is(err, domainevent.ErrPublisherClosed) {
		t.Errorf("Subscribe() error = %v, want ErrPublisherClosed", err)
	}
}

func TestPublisher_Validation(t *testing.T) {
	t.Parallel()

	p := event.NewPublisher()
	defer p.Close()

	tests := []struct {
		name string
		e    domainevent.Event
	}{
		{"missing thread", domainevent.Event{Type: domainevent.TypeStart}},
		{"missing type", domainevent.Event{ThreadID: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := p.Publish(context.Background(), tt.e); !errors.Is(err, domainevent.ErrInvalidEvent) {
				t.Errorf("Publish() error = %v, want ErrInvalidEvent", err)
			}
		})
	}

	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("Publish() with no events error = %v", err)
	}
}

func TestPublisher_RetainsInStore(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	p := event.NewPublisher(event.WithStore(store))
	defer p.Close()

	ctx := context.Background()
	if err := p.Publish(ctx, ev("kept", domainevent.TypeStart), ev("kept", domainevent.TypeComplete)); err != nil {
		t.Fatal(err)
	}

	stored, err := store.LoadEvents(ctx, "kept")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[1].Type != domainevent.TypeComplete {
		t.Errorf("stored = %+v", stored)
	}
}
