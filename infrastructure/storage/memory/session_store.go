package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/session"
)

// SessionStore is an in-memory implementation of session.Store.
type SessionStore struct {
	sessions map[string]*session.Session
	messages map[string][]session.Message
	mu       sync.RWMutex
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session.Session),
		messages: make(map[string][]session.Message),
	}
}

// Ensure returns the session, creating an active one when missing.
func (s *SessionStore) Ensure(ctx context.Context, id, userID string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, session.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok {
		out := *existing
		return &out, nil
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:        id,
		UserID:    userID,
		Status:    session.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[id] = sess
	out := *sess
	return &out, nil
}

// Get retrieves a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	out := *sess
	return &out, nil
}

// List returns sessions matching the filter, most recently updated first.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*session.Session
	for _, sess := range s.sessions {
		if filter.UserID != "" && sess.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && sess.UpdatedAt.Before(filter.Since) {
			continue
		}
		cp := *sess
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*session.Session{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SetStatus changes a session's status.
func (s *SessionStore) SetStatus(ctx context.Context, id string, status session.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", session.ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	sess.Status = status
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendMessages appends transcript entries to a session.
func (s *SessionStore) AppendMessages(ctx context.Context, id string, msgs ...agent.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}

	now := time.Now().UTC()
	for _, m := range msgs {
		s.messages[id] = append(s.messages[id], session.Message{
			ID:        uuid.NewString(),
			SessionID: id,
			Message:   m,
			CreatedAt: now,
		})
	}
	sess.UpdatedAt = now
	return nil
}

// Messages returns a session's transcript, oldest first.
func (s *SessionStore) Messages(ctx context.Context, id string) ([]session.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return append([]session.Message(nil), s.messages[id]...), nil
}

var _ session.Store = (*SessionStore)(nil)
