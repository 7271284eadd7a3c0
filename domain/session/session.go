// Package session provides the domain model for conversation sessions and
// their message transcripts.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Status is the lifecycle status of a session.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Session groups the threads and messages of one conversation.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title,omitempty"`
	Status    Status         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Message is a persisted transcript entry.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Message   agent.Message `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}

// ListFilter specifies criteria for listing sessions.
type ListFilter struct {
	UserID string
	Status Status
	Since  time.Time
	Limit  int
	Offset int
}

// Store persists sessions and their transcripts.
type Store interface {
	// Ensure returns the session, creating an active one when missing.
	Ensure(ctx context.Context, id, userID string) (*Session, error)

	// Get retrieves a session by id.
	Get(ctx context.Context, id string) (*Session, error)

	// List returns sessions matching the filter, most recently updated first.
	List(ctx context.Context, filter ListFilter) ([]*Session, error)

	// SetStatus archives, deletes or reactivates a session.
	SetStatus(ctx context.Context, id string, status Status) error

	// AppendMessages appends transcript entries to a session.
	AppendMessages(ctx context.Context, id string, msgs ...agent.Message) error

	// Messages returns a session's transcript, oldest first.
	Messages(ctx context.Context, id string) ([]Message, error)
}

// Domain errors for session persistence.
var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidID indicates an empty session id.
	ErrInvalidID = errors.New("invalid session id")

	// ErrInvalidStatus indicates an unknown status.
	ErrInvalidStatus = errors.New("invalid session status")
)

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusArchived || s == StatusDeleted
}
