package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

// Checkpointer is an in-memory implementation of checkpoint.Saver.
type Checkpointer struct {
	threads map[string][]*checkpoint.Checkpoint // threadID -> checkpoints, oldest first
	byID    map[string]*checkpoint.Checkpoint
	mu      sync.RWMutex
}

// NewCheckpointer creates a new in-memory checkpointer.
func NewCheckpointer() *Checkpointer {
	return &Checkpointer{
		threads: make(map[string][]*checkpoint.Checkpoint),
		byID:    make(map[string]*checkpoint.Checkpoint),
	}
}

// Put stores a new checkpoint chained to cfg.CheckpointID.
func (c *Checkpointer) Put(ctx context.Context, cfg checkpoint.Config, state *agent.AgentState, meta checkpoint.Metadata) (checkpoint.Config, error) {
	if err := ctx.Err(); err != nil {
		return checkpoint.Config{}, err
	}

	cp, err := checkpoint.New(cfg, state, meta)
	if err != nil {
		return checkpoint.Config{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.threads[cp.ThreadID] = append(c.threads[cp.ThreadID], cp)
	c.byID[cp.ID] = cp
	return cp.Config(), nil
}

// Get returns the addressed checkpoint, or the thread's latest.
func (c *Checkpointer) Get(ctx context.Context, cfg checkpoint.Config) (*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.ThreadID == "" && cfg.CheckpointID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var cp *checkpoint.Checkpoint
	if cfg.CheckpointID != "" {
		found, ok := c.byID[cfg.CheckpointID]
		if ok && (cfg.ThreadID == "" || found.ThreadID == cfg.ThreadID) {
			cp = found
		}
	} else if thread := c.threads[cfg.ThreadID]; len(thread) > 0 {
		cp = thread[len(thread)-1]
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: thread %q checkpoint %q", checkpoint.ErrNotFound, cfg.ThreadID, cfg.CheckpointID)
	}
	return copyCheckpoint(cp)
}

// List returns up to opts.Limit checkpoints in chronological order.
func (c *Checkpointer) List(ctx context.Context, threadID string, opts checkpoint.ListOptions) ([]*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	thread := c.threads[threadID]
	end := len(thread)
	if opts.Before != "" {
		end = 0
		for i, cp := range thread {
			if cp.ID == opts.Before {
				end = i
				break
			}
		}
	}

	limit := opts.EffectiveLimit()
	desc := make([]*checkpoint.Checkpoint, 0, min(limit, end))
	for i := end - 1; i >= 0 && len(desc) < limit; i-- {
		cp, err := copyCheckpoint(thread[i])
		if err != nil {
			return nil, err
		}
		desc = append(desc, cp)
	}
	return checkpoint.Chronological(desc), nil
}

// Threads returns the number of threads with checkpoints.
func (c *Checkpointer) Threads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.threads)
}

// copyCheckpoint hands out a copy so callers cannot mutate stored rows.
func copyCheckpoint(cp *checkpoint.Checkpoint) (*checkpoint.Checkpoint, error) {
	state, err := cp.State.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrCorrupt, err)
	}
	out := *cp
	out.State = state
	return &out, nil
}

var _ checkpoint.Saver = (*Checkpointer)(nil)
