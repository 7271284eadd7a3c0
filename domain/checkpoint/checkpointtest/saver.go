// Package checkpointtest provides a conformance suite for checkpoint.Saver
// implementations.
package checkpointtest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
)

// Factory returns a fresh, empty saver for one subtest.
type Factory func(t *testing.T) checkpoint.Saver

// SampleState returns a state with every field the round trip must keep.
func SampleState() *agent.AgentState {
	tool := "shell_exec"
	s := agent.NewAgentState("session-1", "user-1", "clean the build directory")
	s.Intent = agent.IntentWorkflow
	s.ApplyPlan(agent.NewPlan("clean build", []agent.PlanStep{
		{Description: "list build dir", ToolName: &tool, Arguments: map[string]any{"command": "ls build"}},
		{Description: "summarize", ExpectedOutcome: "user informed"},
	}))
	out := "a.o b.o"
	ms := int64(12)
	s.ToolResults = append(s.ToolResults, agent.ExecutionResult{
		StepNumber: 1, Description: "list build dir", Status: agent.StepCompleted,
		Output: &out, ExecutionTimeMs: &ms, ToolName: tool,
	})
	s.CurrentStep = 2
	s.IterationCount = 1
	return s
}

// Run exercises the Saver contract.
func Run(t *testing.T, newSaver Factory) {
	t.Helper()

	t.Run("round trip", func(t *testing.T) {
		saver := newSaver(t)
		ctx := context.Background()
		state := SampleState()

		cfg, err := saver.Put(ctx, checkpoint.Config{}, state, checkpoint.Metadata{
			Source: checkpoint.SourceLoop, Step: 3, NextNode: agent.StageEvaluator,
			Writes: map[string]any{"executor": "step 1"},
		})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if cfg.ThreadID == "" || cfg.CheckpointID == "" {
			t.Fatalf("Put() returned incomplete config %+v", cfg)
		}

		got, err := saver.Get(ctx, checkpoint.Config{ThreadID: cfg.ThreadID})
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if diff := cmp.Diff(state, got.State); diff != "" {
			t.Errorf("state mismatch (-want +got):\n%s", diff)
		}
		if got.Metadata.NextNode != agent.StageEvaluator || got.Metadata.Step != 3 || got.Metadata.Source != checkpoint.SourceLoop {
			t.Errorf("Metadata = %+v", got.Metadata)
		}
		if got.ID != cfg.CheckpointID || got.ThreadID != cfg.ThreadID {
			t.Errorf("addresses = %s/%s, want %s/%s", got.ThreadID, got.ID, cfg.ThreadID, cfg.CheckpointID)
		}
	})

	t.Run("stored checkpoints are immutable", func(t *testing.T) {
		saver := newSaver(t)
		ctx := context.Background()
		state := SampleState()

		cfg, err := saver.Put(ctx, checkpoint.Config{ThreadID: "immutable"}, state, checkpoint.Metadata{NextNode: agent.StageExecutor})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		state.AppendMessages(agent.AssistantMessage("mutated"))
		state.CurrentStep = 9

		got, err := saver.Get(ctx, cfg)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(got.State.Messages) != 1 || got.State.CurrentStep != 2 {
			t.Errorf("stored checkpoint changed: %d messages, step %d", len(got.State.Messages), got.State.CurrentStep)
		}
	})

	t.Run("chains and resolves latest", func(t *testing.T) {
		saver := newSaver(t)
		ctx := context.Background()
		state := SampleState()

		var ids []string
		cfg := checkpoint.Config{ThreadID: "chain"}
		for step := 1; step <= 3; step++ {
			state.IterationCount = step
			next, err := saver.Put(ctx, cfg, state, checkpoint.Metadata{Source: checkpoint.SourceLoop, Step: step, NextNode: agent.StageExecutor})
			if err != nil {
				t.Fatalf("Put(step %d) error = %v", step, err)
			}
			ids = append(ids, next.CheckpointID)
			cfg = next
		}

		latest, err := saver.Get(ctx, checkpoint.Config{ThreadID: "chain"})
		if err != nil {
			t.Fatalf("Get(latest) error = %v", err)
		}
		if latest.ID != ids[2] || latest.ParentID != ids[1] || latest.State.IterationCount != 3 {
			t.Errorf("latest = %s parent %s iter %d", latest.ID, latest.ParentID, latest.State.IterationCount)
		}

		first, err := saver.Get(ctx, checkpoint.Config{ThreadID: "chain", CheckpointID: ids[0]})
		if err != nil {
			t.Fatalf("Get(first) error = %v", err)
		}
		if first.ParentID != "" || first.State.IterationCount != 1 {
			t.Errorf("first = parent %q iter %d", first.ParentID, first.State.IterationCount)
		}
	})

	t.Run("list is chronological and bounded", func(t *testing.T) {
		saver := newSaver(t)
		ctx := context.Background()
		state := SampleState()

		var ids []string
		cfg := checkpoint.Config{ThreadID: "listing"}
		for step := 1; step <= 4; step++ {
			next, err := saver.Put(ctx, cfg, state, checkpoint.Metadata{Step: step, NextNode: agent.StageExecutor})
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			ids = append(ids, next.CheckpointID)
			cfg = next
		}
		if _, err := saver.Put(ctx, checkpoint.Config{ThreadID: "other"}, state, checkpoint.Metadata{}); err != nil {
			t.Fatalf("Put(other) error = %v", err)
		}

		all, err := saver.List(ctx, "listing", checkpoint.ListOptions{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got := checkpointIDs(all); !cmp.Equal(got, ids) {
			t.Errorf("List() = %v, want %v", got, ids)
		}

		limited, err := saver.List(ctx, "listing", checkpoint.ListOptions{Limit: 2})
		if err != nil {
			t.Fatalf("List(limit) error = %v", err)
		}
		if got := checkpointIDs(limited); !cmp.Equal(got, ids[2:]) {
			t.Errorf("List(limit 2) = %v, want %v", got, ids[2:])
		}

		before, err := saver.List(ctx, "listing", checkpoint.ListOptions{Before: ids[2]})
		if err != nil {
			t.Fatalf("List(before) error = %v", err)
		}
		if got := checkpointIDs(before); !cmp.Equal(got, ids[:2]) {
			t.Errorf("List(before) = %v, want %v", got, ids[:2])
		}
	})

	t.Run("missing checkpoints", func(t *testing.T) {
		saver := newSaver(t)
		ctx := context.Background()

		if _, err := saver.Get(ctx, checkpoint.Config{ThreadID: "nope"}); !errors.Is(err, checkpoint.ErrNotFound) {
			t.Errorf("Get(unknown thread) error = %v, want ErrNotFound", err)
		}
		if _, err := saver.Get(ctx, checkpoint.Config{ThreadID: "nope", CheckpointID: "missing"}); !errors.Is(err, checkpoint.ErrNotFound) {
			t.Errorf("Get(unknown id) error = %v, want ErrNotFound", err)
		}
		if _, err := saver.Get(ctx, checkpoint.Config{}); !errors.Is(err, checkpoint.ErrInvalidThreadID) {
			t.Errorf("Get(empty) error = %v, want ErrInvalidThreadID", err)
		}
		list, err := saver.List(ctx, "nope", checkpoint.ListOptions{})
		if err != nil || len(list) != 0 {
			t.Errorf("List(unknown) = %v, %v; want empty", list, err)
		}
	})
}

func checkpointIDs(cps []*checkpoint.Checkpoint) []string {
	ids := make([]string, 0, len(cps))
	for _, cp := range cps {
		ids = append(ids, cp.ID)
	}
	return ids
}
