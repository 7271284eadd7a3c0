package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/event"
)

// EventStore is an in-memory implementation of event.Store.
type EventStore struct {
	events    map[string][]event.Event // threadID -> events
	sequences map[string]uint64        // threadID -> last sequence
	mu        sync.RWMutex
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events:    make(map[string][]event.Event),
		sequences: make(map[string]uint64),
	}
}

// Append persists one or more events atomically, assigning ids and
// per-thread sequence numbers.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e.Type == "" || e.ThreadID == "" {
			return event.ErrInvalidEvent
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.sequences[e.ThreadID]++
		e.Sequence = s.sequences[e.ThreadID]
		s.events[e.ThreadID] = append(s.events[e.ThreadID], e)
	}
	return nil
}

// LoadEvents retrieves all events for a thread in sequence order.
func (s *EventStore) LoadEvents(ctx context.Context, threadID string) ([]event.Event, error) {
	return s.LoadEventsFrom(ctx, threadID, 0)
}

// LoadEventsFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadEventsFrom(ctx context.Context, threadID string, fromSeq uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]event.Event, 0, len(s.events[threadID]))
	for _, e := range s.events[threadID] {
		if e.Sequence >= fromSeq {
			result = append(result, e)
		}
	}
	return result, nil
}

// Threads returns the ids of all threads with events, sorted.
func (s *EventStore) Threads(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteThread removes all events for a thread.
func (s *EventStore) DeleteThread(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.events, threadID)
	delete(s.sequences, threadID)
	return nil
}

// Len returns the total number of events across all threads.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, events := range s.events {
		count += len(events)
	}
	return count
}

var _ event.Store = (*EventStore)(nil)
