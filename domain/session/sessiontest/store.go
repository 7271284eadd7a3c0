// Package sessiontest provides a conformance suite for session.Store
// implementations.
package sessiontest

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/session"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) session.Store

// Run exercises the Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("ensure", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, err := store.Ensure(ctx, "default", "user")
		if err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if first.Status != session.StatusActive || first.UserID != "user" {
			t.Errorf("Ensure() = %+v", first)
		}

		again, err := store.Ensure(ctx, "default", "someone-else")
		if err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if again.UserID != "user" || !again.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("Ensure() recreated the session: %+v", again)
		}

		if _, err := store.Ensure(ctx, "", "user"); !errors.Is(err, session.ErrInvalidID) {
			t.Errorf("Ensure(empty) error = %v, want ErrInvalidID", err)
		}
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("messages", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.Ensure(ctx, "s1", "u"); err != nil {
			t.Fatal(err)
		}
		if err := store.AppendMessages(ctx, "s1", agent.UserMessage("ls"), agent.AssistantMessage("Running: `ls`")); err != nil {
			t.Fatalf("AppendMessages() error = %v", err)
		}
		if err := store.AppendMessages(ctx, "s1", agent.ToolMessage("a b")); err != nil {
			t.Fatal(err)
		}

		msgs, err := store.Messages(ctx, "s1")
		if err != nil {
			t.Fatalf("Messages() error = %v", err)
		}
		if len(msgs) != 3 || msgs[0].Message.Content != "ls" || msgs[2].Message.Role != agent.RoleTool {
			t.Errorf("Messages() = %+v", msgs)
		}
		if msgs[0].SessionID != "s1" || msgs[0].ID == "" {
			t.Errorf("Messages()[0] = %+v", msgs[0])
		}

		if err := store.AppendMessages(ctx, "missing", agent.UserMessage("x")); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("AppendMessages(missing) error = %v, want ErrNotFound", err)
		}
		if _, err := store.Messages(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("Messages(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list and status", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			if _, err := store.Ensure(ctx, id, "alice"); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := store.Ensure(ctx, "d", "bob"); err != nil {
			t.Fatal(err)
		}

		if err := store.SetStatus(ctx, "b", session.StatusArchived); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		if err := store.SetStatus(ctx, "b", "frozen"); !errors.Is(err, session.ErrInvalidStatus) {
			t.Errorf("SetStatus(frozen) error = %v, want ErrInvalidStatus", err)
		}
		if err := store.SetStatus(ctx, "zzz", session.StatusArchived); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
		}

		alice, err := store.List(ctx, session.ListFilter{UserID: "alice"})
		if err != nil {
			t.Fatal(err)
		}
		if len(alice) != 3 {
			t.Errorf("List(alice) = %d sessions, want 3", len(alice))
		}

		active, err := store.List(ctx, session.ListFilter{UserID: "alice", Status: session.StatusActive, Limit: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(active) != 1 || active[0].Status != session.StatusActive {
			t.Errorf("List(active, limit 1) = %+v", active)
		}

		got, err := store.Get(ctx, "b")
		if err != nil || got.Status != session.StatusArchived {
			t.Errorf("Get(b) = %+v, %v", got, err)
		}
	})
}
