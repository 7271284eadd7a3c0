package checkpoint

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Saver persists and restores checkpoints.
// Implementations may be in-memory, PostgreSQL, SQLite, Redis, Badger or MongoDB.
type Saver interface {
	// Put stores a new checkpoint chained to cfg.CheckpointID and returns
	// its address. Stored checkpoints are never modified.
	Put(ctx context.Context, cfg Config, state *agent.AgentState, meta Metadata) (Config, error)

	// Get returns the checkpoint cfg points at, or the most recent one for
	// the thread when no checkpoint id is given.
	Get(ctx context.Context, cfg Config) (*Checkpoint, error)

	// List returns up to opts.Limit checkpoints for the thread in
	// chronological order, optionally only those older than opts.Before.
	List(ctx context.Context, threadID string, opts ListOptions) ([]*Checkpoint, error)
}

// ListOptions configures List.
type ListOptions struct {
	// Limit is the maximum number of checkpoints (0 = DefaultListLimit).
	Limit int

	// Before restricts results to checkpoints created before this one.
	Before string
}

// EffectiveLimit returns the limit to apply.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// Domain errors for checkpoint persistence.
var (
	// ErrNotFound indicates no checkpoint matched.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrInvalidThreadID indicates an empty thread id where one is required.
	ErrInvalidThreadID = errors.New("invalid thread id")

	// ErrNilState indicates Put was called without a state.
	ErrNilState = errors.New("checkpoint state is nil")

	// ErrInvalidMetadata indicates malformed metadata.
	ErrInvalidMetadata = errors.New("invalid checkpoint metadata")

	// ErrCorrupt indicates a stored checkpoint could not be decoded.
	ErrCorrupt = errors.New("corrupt checkpoint")
)
