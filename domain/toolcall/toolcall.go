// Package toolcall provides the domain model for the tool-call audit trail
// written by the executor.
package toolcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle status of a tool call.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal returns true once the call can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is one persisted tool invocation.
type Record struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	ToolName        string          `json:"tool_name"`
	Inputs          json.RawMessage `json:"inputs"`
	Outputs         json.RawMessage `json:"outputs,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Status          Status          `json:"status"`
	ExecutionTimeMs int64           `json:"execution_time_ms,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CheckTransition enforces create -> running -> exactly one terminal mark.
// Repeating the terminal mark a record already has is accepted so that
// retried writes stay idempotent.
func CheckTransition(from, to Status) error {
	switch {
	case from == to && to.IsTerminal():
		return nil
	case from == StatusPending && to == StatusRunning:
		return nil
	case from == StatusRunning && to.IsTerminal():
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
}

// Repository records the tool-call lifecycle. Calls are ordered per id.
type Repository interface {
	// Create stores a PENDING call and returns its id.
	Create(ctx context.Context, sessionID, toolName string, inputs json.RawMessage) (string, error)

	// MarkRunning moves a call to RUNNING.
	MarkRunning(ctx context.Context, id string) error

	// MarkCompleted records the outputs and duration.
	MarkCompleted(ctx context.Context, id string, outputs json.RawMessage, durationMs int64) error

	// MarkFailed records the failure message.
	MarkFailed(ctx context.Context, id string, errorMessage string) error

	// Get retrieves a call by id.
	Get(ctx context.Context, id string) (*Record, error)

	// ListBySession returns a session's calls, oldest first.
	ListBySession(ctx context.Context, sessionID string) ([]*Record, error)
}

// Domain errors for tool-call persistence.
var (
	// ErrNotFound indicates the tool call does not exist.
	ErrNotFound = errors.New("tool call not found")

	// ErrInvalidID indicates an empty id.
	ErrInvalidID = errors.New("invalid tool call id")

	// ErrInvalidTransition indicates an out-of-order lifecycle write.
	ErrInvalidTransition = errors.New("invalid tool call transition")
)
