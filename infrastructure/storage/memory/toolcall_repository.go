package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/toolcall"
)

// ToolCallRepository is an in-memory implementation of toolcall.Repository.
type ToolCallRepository struct {
	calls map[string]*toolcall.Record
	seq   map[string]uint64
	next  uint64
	mu    sync.RWMutex
}

// NewToolCallRepository creates a new in-memory tool-call repository.
func NewToolCallRepository() *ToolCallRepository {
	return &ToolCallRepository{
		calls: make(map[string]*toolcall.Record),
		seq:   make(map[string]uint64),
	}
}

// Create stores a PENDING call.
func (r *ToolCallRepository) Create(ctx context.Context, sessionID, toolName string, inputs json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := &toolcall.Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		ToolName:  toolName,
		Inputs:    append(json.RawMessage(nil), inputs...),
		Status:    toolcall.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.calls[rec.ID] = rec
	r.seq[rec.ID] = r.next
	return rec.ID, nil
}

// MarkRunning moves a call to RUNNING.
func (r *ToolCallRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, id, toolcall.StatusRunning, func(*toolcall.Record) {})
}

// MarkCompleted records the outputs and duration.
func (r *ToolCallRepository) MarkCompleted(ctx context.Context, id string, outputs json.RawMessage, durationMs int64) error {
	return r.update(ctx, id, toolcall.StatusCompleted, func(rec *toolcall.Record) {
		rec.Outputs = append(json.RawMessage(nil), outputs...)
		rec.ExecutionTimeMs = durationMs
	})
}

// MarkFailed records the failure message.
func (r *ToolCallRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	return r.update(ctx, id, toolcall.StatusFailed, func(rec *toolcall.Record) {
		rec.ErrorMessage = errorMessage
	})
}

func (r *ToolCallRepository) update(ctx context.Context, id string, to toolcall.Status, apply func(*toolcall.Record)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return toolcall.ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.calls[id]
	if !ok {
		return fmt.Errorf("%w: %s", toolcall.ErrNotFound, id)
	}
	if err := toolcall.CheckTransition(rec.Status, to); err != nil {
		return err
	}
	if rec.Status == to {
		return nil
	}

	rec.Status = to
	rec.UpdatedAt = time.Now().UTC()
	apply(rec)
	return nil
}

// Get retrieves a call by id.
func (r *ToolCallRepository) Get(ctx context.Context, id string) (*toolcall.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, toolcall.ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.calls[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", toolcall.ErrNotFound, id)
	}
	out := *rec
	return &out, nil
}

// ListBySession returns a session's calls, oldest first.
func (r *ToolCallRepository) ListBySession(ctx context.Context, sessionID string) ([]*toolcall.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*toolcall.Record
	for _, rec := range r.calls {
		if rec.SessionID == sessionID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	return out, nil
}

var _ toolcall.Repository = (*ToolCallRepository)(nil)
