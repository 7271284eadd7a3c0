// Package event provides the fan-out publisher that delivers stream events
// to live subscribers and optionally retains them in an event store.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Publisher fans events out to per-thread subscribers. Delivery never
// blocks: a subscriber whose buffer is full misses the event.
type Publisher struct {
	store   event.Store
	bufSize int

	subs    map[string]map[*subscription]struct{}
	seq     map[string]uint64
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
	mu      sync.RWMutex
}

type subscription struct {
	ch chan event.Event
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithBufferSize sets the subscriber channel capacity.
func WithBufferSize(size int) PublisherOption {
	return func(p *Publisher) {
		p.bufSize = size
	}
}

// WithStore retains every published event in store.
func WithStore(store event.Store) PublisherOption {
	return func(p *Publisher) {
		p.store = store
	}
}

// NewPublisher creates a new event publisher.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{
		bufSize: DefaultBufferSize,
		subs:    make(map[string]map[*subscription]struct{}),
		seq:     make(map[string]uint64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize <= 0 {
		p.bufSize = DefaultBufferSize
	}
	return p
}

// Publish stamps ids and per-stream sequence numbers, retains the events
// when a store is configured and delivers them to subscribers. A terminal
// event ends the thread's stream numbering.
func (p *Publisher) Publish(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e.ThreadID == "" || e.Type == "" {
			return event.ErrInvalidEvent
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return event.ErrPublisherClosed
	}
	stamped := make([]event.Event, len(events))
	for i, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}
		p.seq[e.ThreadID]++
		e.Sequence = p.seq[e.ThreadID]
		if e.IsTerminal() {
			delete(p.seq, e.ThreadID)
		}
		stamped[i] = e
	}
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Append(ctx, stamped...); err != nil {
			logging.Warn().
				Add(logging.Component("event")).
				Add(logging.ThreadID(stamped[0].ThreadID)).
				Add(logging.ErrorField(err)).
				Msg("event store append failed")
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range stamped {
		for sub := range p.subs[e.ThreadID] {
			select {
			case sub.ch <- e:
			default:
				p.dropped.Add(1)
				logging.Debug().
					Add(logging.ThreadID(e.ThreadID)).
					Add(logging.Str("event_type", string(e.Type))).
					Msg("subscriber buffer full, event dropped")
			}
		}
	}
	return nil
}

// Subscribe returns a channel receiving the thread's future events. The
// channel closes when ctx is cancelled or the publisher closes.
func (p *Publisher) Subscribe(ctx context.Context, threadID string) (<-chan event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, event.ErrPublisherClosed
	}
	sub := &subscription{ch: make(chan event.Event, p.bufSize)}
	if p.subs[threadID] == nil {
		p.subs[threadID] = make(map[*subscription]struct{})
	}
	p.subs[threadID][sub] = struct{}{}
	p.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			p.unsubscribe(threadID, sub)
		case <-p.done:
		}
	}()

	return sub.ch, nil
}

func (p *Publisher) unsubscribe(threadID string, sub *subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs, ok := p.subs[threadID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(p.subs, threadID)
	}
}

// Subscribers returns the number of live subscriptions for a thread.
func (p *Publisher) Subscribers(threadID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[threadID])
}

// Dropped returns how many deliveries were skipped on full buffers.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close closes every subscription. Later publishes fail with
// ErrPublisherClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	for threadID, subs := range p.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(p.subs, threadID)
	}
	return nil
}

var (
	_ event.Publisher  = (*Publisher)(nil)
	_ event.Subscriber = (*Publisher)(nil)
)
