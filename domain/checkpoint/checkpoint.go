// Package checkpoint provides the domain model for resumable execution:
// immutable AgentState snapshots chained per thread.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Sources recorded in checkpoint metadata.
const (
	SourceInput  = "input"  // Written before the first stage runs
	SourceLoop   = "loop"   // Written after a stage completes
	SourceResume = "resume" // Written when a thread is resumed
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 10

// Config addresses a checkpoint. An empty CheckpointID means "latest".
type Config struct {
	ThreadID     string `json:"thread_id"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

// Metadata describes how a checkpoint was produced.
type Metadata struct {
	Source string         `json:"source"`
	Step   int            `json:"step"`
	Writes map[string]any `json:"writes,omitempty"`

	// NextNode is the stage the graph re-enters at on resume.
	NextNode agent.Stage `json:"next_node"`
}

// Checkpoint is an immutable snapshot of AgentState.
type Checkpoint struct {
	ID        string            `json:"id"`
	ThreadID  string            `json:"thread_id"`
	SessionID string            `json:"session_id"`
	ParentID  string            `json:"parent_checkpoint_id,omitempty"`
	State     *agent.AgentState `json:"checkpoint"`
	Metadata  Metadata          `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// Config returns the address of this checkpoint.
func (c *Checkpoint) Config() Config {
	return Config{ThreadID: c.ThreadID, CheckpointID: c.ID}
}

// New builds the next checkpoint for cfg. The parent is the checkpoint cfg
// points at; an empty thread id starts a new thread. The state is deep
// copied so later mutation by the caller cannot leak into the snapshot.
func New(cfg Config, state *agent.AgentState, meta Metadata) (*Checkpoint, error) {
	if state == nil {
		return nil, ErrNilState
	}
	snapshot, err := state.Clone()
	if err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}

	threadID := cfg.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if meta.NextNode != "" && !meta.NextNode.IsValid() {
		return nil, fmt.Errorf("%w: next node %q", ErrInvalidMetadata, meta.NextNode)
	}

	return &Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SessionID: state.SessionID,
		ParentID:  cfg.CheckpointID,
		State:     snapshot,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// record is the persisted form of the state blob.
type record struct {
	Checkpoint         *agent.AgentState `json:"checkpoint"`
	Metadata           Metadata          `json:"metadata"`
	ParentCheckpointID string            `json:"parent_checkpoint_id,omitempty"`
	NextNode           agent.Stage       `json:"next_node"`
}

// MarshalState encodes the state blob stored alongside the row columns.
func MarshalState(c *Checkpoint) ([]byte, error) {
	return json.Marshal(record{
		Checkpoint:         c.State,
		Metadata:           c.Metadata,
		ParentCheckpointID: c.ParentID,
		NextNode:           c.Metadata.NextNode,
	})
}

// UnmarshalState decodes a state blob into c.
func UnmarshalState(data []byte, c *Checkpoint) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if r.Checkpoint == nil {
		return fmt.Errorf("%w: missing state", ErrCorrupt)
	}
	c.State = r.Checkpoint
	c.Metadata = r.Metadata
	c.ParentID = r.ParentCheckpointID
	if c.Metadata.NextNode == "" {
		c.Metadata.NextNode = r.NextNode
	}
	return nil
}

// Chronological reverses a most-recent-first slice in place.
func Chronological(desc []*Checkpoint) []*Checkpoint {
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc
}
