package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/infrastructure/statemachine"
)

// ExportFormat selects an export encoding.
type ExportFormat string

const (
	FormatJSON    ExportFormat = "json"
	FormatDOT     ExportFormat = "dot"
	FormatMermaid ExportFormat = "mermaid"
)

// ErrUnsupportedFormat indicates an export format the target cannot produce.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// TimelineEntry is one checkpoint of a thread, as shown to operators.
type TimelineEntry struct {
	CheckpointID string         `json:"checkpoint_id"`
	ParentID     string         `json:"parent_checkpoint_id,omitempty"`
	Source       string         `json:"source"`
	Step         int            `json:"step"`
	NextNode     agent.Stage    `json:"next_node"`
	Writes       map[string]any `json:"writes,omitempty"`
	Intent       agent.Intent   `json:"intent,omitempty"`
	CurrentStep  int            `json:"current_step"`
	Outcome      agent.Outcome  `json:"outcome,omitempty"`
	Complete     bool           `json:"complete"`
	CreatedAt    time.Time      `json:"created_at"`
}

// InspectionService exposes checkpoint history and the routing graph.
type InspectionService struct {
	checkpoints checkpoint.Saver
}

// NewInspectionService creates a new inspection service.
func NewInspectionService(saver checkpoint.Saver) *InspectionService {
	return &InspectionService{
		checkpoints: saver,
	}
}

// Timeline returns up to opts.Limit checkpoints of a thread, oldest first.
func (s *InspectionService) Timeline(ctx context.Context, threadID string, opts checkpoint.ListOptions) ([]TimelineEntry, error) {
	if threadID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}
	cps, err := s.checkpoints.List(ctx, threadID, opts)
	if err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(cps))
	for _, cp := range cps {
		entry := TimelineEntry{
			CheckpointID: cp.ID,
			ParentID:     cp.ParentID,
			Source:       cp.Metadata.Source,
			Step:         cp.Metadata.Step,
			NextNode:     cp.Metadata.NextNode,
			Writes:       cp.Metadata.Writes,
			CreatedAt:    cp.CreatedAt,
		}
		if cp.State != nil {
			entry.Intent = cp.State.Intent
			entry.CurrentStep = cp.State.CurrentStep
			entry.Outcome = cp.State.EvaluationOutcome
			entry.Complete = cp.State.IsComplete
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ExportGraph renders the routing table.
func ExportGraph(format ExportFormat) ([]byte, error) {
	var b strings.Builder
	switch format {
	case FormatDOT:
		b.WriteString("digraph orbit {\n  rankdir=LR;\n")
		for _, from := range graphSources() {
			for _, to := range statemachine.Targets(from) {
				fmt.Fprintf(&b, "  %q -> %q;\n", from, to)
			}
		}
		b.WriteString("}\n")
	case FormatMermaid:
		b.WriteString("stateDiagram-v2\n")
		for _, from := range graphSources() {
			for _, to := range statemachine.Targets(from) {
				fmt.Fprintf(&b, "  %s --> %s\n", mermaidID(from), mermaidID(to))
			}
		}
	case FormatJSON:
		table := make(map[agent.Stage][]agent.Stage)
		for _, from := range graphSources() {
			table[from] = statemachine.Targets(from)
		}
		return json.MarshalIndent(table, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return []byte(b.String()), nil
}

func graphSources() []agent.Stage {
	return append([]agent.Stage{agent.StageStart}, agent.WorkStages()...)
}

func mermaidID(s agent.Stage) string {
	if s.IsVirtual() {
		return "[*]"
	}
	return string(s)
}
