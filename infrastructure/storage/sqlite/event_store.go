package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/event"
)

// EventStore is a SQLite-backed implementation of event.Store. It also
// delivers appended events to live subscribers, so a replayed stream can
// be followed.
type EventStore struct {
	db          *sql.DB
	subscribers map[string][]chan event.Event
	mu          sync.RWMutex
}

// NewEventStore creates a new SQLite event store with the given configuration.
func NewEventStore(cfg Config, opts ...Option) (*EventStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &EventStore{
		db:          db,
		subscribers: make(map[string][]chan event.Event),
	}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewEventStoreFromDB creates an event store from an existing database connection.
func NewEventStoreFromDB(db *sql.DB) (*EventStore, error) {
	s := &EventStore{
		db:          db,
		subscribers: make(map[string][]chan event.Event),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate creates the events table if it doesn't exist.
func (s *EventStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			type TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_events_thread_seq ON events(thread_id, sequence);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Append persists events atomically, assigning ids and per-thread
// sequence numbers. An invalid event rejects the whole batch.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, thread_id, type, sequence, timestamp, data) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	sequences := make(map[string]uint64)
	processed := make([]event.Event, 0, len(events))
	for _, e := range events {
		seq, ok := sequences[e.ThreadID]
		if !ok {
			var maxSeq sql.NullInt64
			err := tx.QueryRowContext(ctx, "SELECT MAX(sequence) FROM events WHERE thread_id = ?", e.ThreadID).Scan(&maxSeq)
			if err != nil {
				return err
			}
			seq = uint64(maxSeq.Int64)
		}
		seq++
		sequences[e.ThreadID] = seq

		e.Sequence = seq
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.ThreadID, string(e.Type), e.Sequence, e.Timestamp.UnixNano(), data); err != nil {
			return err
		}
		processed = append(processed, e)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.notifySubscribers(processed)
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

	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM events WHERE thread_id = ? AND sequence >= ? ORDER BY sequence",
		threadID, fromSeq,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []event.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e event.Event
		if err := json.Unmarshal(data, &e); err != nil {
			continue // Skip malformed entries
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Subscribe returns a channel that receives newly appended events for a
// thread. The channel closes when ctx is cancelled or the store closes.
func (s *EventStore) Subscribe(ctx context.Context, threadID string) (<-chan event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	ch := make(chan event.Event, 100)
	s.subscribers[threadID] = append(s.subscribers[threadID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.unsubscribe(threadID, ch)
	}()

	return ch, nil
}

func (s *EventStore) unsubscribe(threadID string, ch chan event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subscribers[threadID]
	for i, sub := range subs {
		if sub == ch {
			s.subscribers[threadID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(s.subscribers[threadID]) == 0 {
		delete(s.subscribers, threadID)
	}
}

// notifySubscribers delivers without blocking; full channels miss events.
func (s *EventStore) notifySubscribers(events []event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range events {
		for _, ch := range s.subscribers[e.ThreadID] {
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// CountEvents returns the number of events for a thread.
func (s *EventStore) CountEvents(ctx context.Context, threadID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE thread_id = ?", threadID).Scan(&count)
	return count, err
}

// Threads returns the ids of threads with events, sorted.
func (s *EventStore) Threads(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT thread_id FROM events ORDER BY thread_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var threads []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}

// DeleteThread removes a thread's events and closes its subscribers.
func (s *EventStore) DeleteThread(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, ch := range s.subscribers[threadID] {
		close(ch)
	}
	delete(s.subscribers, threadID)
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE thread_id = ?", threadID)
	return err
}

// Close closes the database connection and all subscriber channels.
func (s *EventStore) Close() error {
	s.mu.Lock()
	for _, subs := range s.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	s.subscribers = make(map[string][]chan event.Event)
	s.mu.Unlock()

	return s.db.Close()
}

var (
	_ event.Store      = (*EventStore)(nil)
	_ event.Subscriber = (*EventStore)(nil)
)
