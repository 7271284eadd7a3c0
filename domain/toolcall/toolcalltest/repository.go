// Package toolcalltest provides a conformance suite for
// toolcall.Repository implementations.
package toolcalltest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/toolcall"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) toolcall.Repository

// Run exercises the Repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("completed lifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		id, err := repo.Create(ctx, "session-1", "shell_exec", json.RawMessage(`{"command":"ls"}`))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		rec, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Status != toolcall.StatusPending || rec.ToolName != "shell_exec" || rec.SessionID != "session-1" {
			t.Errorf("created record = %+v", rec)
		}

		if err := repo.MarkRunning(ctx, id); err != nil {
			t.Fatalf("MarkRunning() error = %v", err)
		}
		if err := repo.MarkCompleted(ctx, id, json.RawMessage(`{"output":"a b"}`), 42); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}

		rec, err = repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Status != toolcall.StatusCompleted || rec.ExecutionTimeMs != 42 {
			t.Errorf("completed record = %+v", rec)
		}
		var out map[string]string
		if err := json.Unmarshal(rec.Outputs, &out); err != nil || out["output"] != "a b" {
			t.Errorf("Outputs = %s (%v)", rec.Outputs, err)
		}
		var in map[string]string
		if err := json.Unmarshal(rec.Inputs, &in); err != nil || in["command"] != "ls" {
			t.Errorf("Inputs = %s (%v)", rec.Inputs, err)
		}

		// Repeating the terminal write is accepted; switching it is not.
		if err := repo.MarkCompleted(ctx, id, json.RawMessage(`{"output":"a b"}`), 42); err != nil {
			t.Errorf("repeated MarkCompleted() error = %v", err)
		}
		if err := repo.MarkFailed(ctx, id, "late"); !errors.Is(err, toolcall.ErrInvalidTransition) {
			t.Errorf("MarkFailed() after completion error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("failed lifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		id, err := repo.Create(ctx, "session-1", "file_ops", json.RawMessage(`{}`))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := repo.MarkRunning(ctx, id); err != nil {
			t.Fatalf("MarkRunning() error = %v", err)
		}
		if err := repo.MarkFailed(ctx, id, "permission denied"); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}

		rec, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Status != toolcall.StatusFailed || rec.ErrorMessage != "permission denied" {
			t.Errorf("failed record = %+v", rec)
		}
	})

	t.Run("enforces ordering", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		id, err := repo.Create(ctx, "session-1", "file_ops", json.RawMessage(`{}`))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := repo.MarkCompleted(ctx, id, json.RawMessage(`{}`), 1); !errors.Is(err, toolcall.ErrInvalidTransition) {
			t.Errorf("MarkCompleted() before running error = %v, want ErrInvalidTransition", err)
		}
		if err := repo.MarkRunning(ctx, id); err != nil {
			t.Fatalf("MarkRunning() error = %v", err)
		}
		if err := repo.MarkRunning(ctx, id); !errors.Is(err, toolcall.ErrInvalidTransition) {
			t.Errorf("MarkRunning() twice error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("missing calls", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, toolcall.ErrNotFound) {
			t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
		}
		if err := repo.MarkRunning(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, toolcall.ErrNotFound) {
			t.Errorf("MarkRunning(unknown) error = %v, want ErrNotFound", err)
		}
		if _, err := repo.Get(ctx, ""); !errors.Is(err, toolcall.ErrInvalidID) {
			t.Errorf("Get(empty) error = %v, want ErrInvalidID", err)
		}
	})

	t.Run("lists by session in creation order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		var ids []string
		for _, name := range []string{"a", "b", "c"} {
			id, err := repo.Create(ctx, "listed", name, json.RawMessage(`{}`))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			ids = append(ids, id)
		}
		if _, err := repo.Create(ctx, "other", "x", json.RawMessage(`{}`)); err != nil {
			t.Fatalf("Create(other) error = %v", err)
		}

		recs, err := repo.ListBySession(ctx, "listed")
		if err != nil {
			t.Fatalf("ListBySession() error = %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("ListBySession() = %d records, want 3", len(recs))
		}
		for i, rec := range recs {
			if rec.ID != ids[i] {
				t.Errorf("recs[%d] = %s, want %s", i, rec.ID, ids[i])
			}
		}
	})
}
