package event

import "context"

// Publisher delivers events to interested subscribers.
type Publisher interface {
	// Publish sends events. Delivery is best-effort.
	Publish(ctx context.Context, events ...Event) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Subscriber receives events for a thread.
type Subscriber interface {
	// Subscribe returns a channel that receives events for a thread.
	// The channel is closed when ctx is cancelled or the publisher closes.
	Subscribe(ctx context.Context, threadID string) (<-chan Event, error)
}

// Store retains events so a stream can be replayed.
type Store interface {
	// Append persists events, assigning per-thread sequence numbers.
	Append(ctx context.Context, events ...Event) error

	// LoadEvents retrieves all events for a thread in sequence order.
	LoadEvents(ctx context.Context, threadID string) ([]Event, error)
}
