package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/checkpoint/checkpointtest"
	"github.com/felixgeelhaar/orbit/domain/session"
	"github.com/felixgeelhaar/orbit/domain/session/sessiontest"
	"github.com/felixgeelhaar/orbit/domain/toolcall"
	"github.com/felixgeelhaar/orbit/domain/toolcall/toolcalltest"
)

func TestStores_tableNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"checkpoints default schema", NewCheckpointer(nil, "").tableName(), "public.agent_checkpoints"},
		{"checkpoints custom schema", NewCheckpointer(nil, "orbit").tableName(), "orbit.agent_checkpoints"},
		{"tool calls", NewToolCallRepository(nil, "").tableName(), "public.agent_tool_calls"},
		{"sessions", NewSessionStore(nil, "app").sessionsTable(), "app.agent_sessions"},
		{"messages", NewSessionStore(nil, "").messagesTable(), "public.agent_messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.expected {
				t.Errorf("tableName() = %s, want %s", tt.got, tt.expected)
			}
		})
	}
}

func TestStores_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, err := NewCheckpointer(nil, "").Get(ctx, checkpoint.Config{}); !errors.Is(err, checkpoint.ErrInvalidThreadID) {
		t.Errorf("Get(empty) error = %v, want ErrInvalidThreadID", err)
	}
	if _, err := NewCheckpointer(nil, "").Put(ctx, checkpoint.Config{}, nil, checkpoint.Metadata{}); !errors.Is(err, checkpoint.ErrNilState) {
		t.Errorf("Put(nil) error = %v, want ErrNilState", err)
	}
	if _, err := NewToolCallRepository(nil, "").Get(ctx, ""); !errors.Is(err, toolcall.ErrInvalidID) {
		t.Errorf("Get(empty) error = %v, want ErrInvalidID", err)
	}
	if err := NewToolCallRepository(nil, "").MarkRunning(ctx, ""); !errors.Is(err, toolcall.ErrInvalidID) {
		t.Errorf("MarkRunning(empty) error = %v, want ErrInvalidID", err)
	}
	if _, err := NewSessionStore(nil, "").Ensure(ctx, "", "u"); !errors.Is(err, session.ErrInvalidID) {
		t.Errorf("Ensure(empty) error = %v, want ErrInvalidID", err)
	}
	if err := NewSessionStore(nil, "").SetStatus(ctx, "s", "frozen"); !errors.Is(err, session.ErrInvalidStatus) {
		t.Errorf("SetStatus(frozen) error = %v, want ErrInvalidStatus", err)
	}
}

func TestBuildSessionWhere(t *testing.T) {
	t.Parallel()

	where, args := buildSessionWhere(session.ListFilter{})
	if where != "" || len(args) != 0 {
		t.Errorf("buildSessionWhere(empty) = %q, %v", where, args)
	}

	where, args = buildSessionWhere(session.ListFilter{UserID: "alice", Status: session.StatusActive})
	if where != "WHERE user_id = $1 AND status = $2" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 || args[0] != "alice" || args[1] != "active" {
		t.Errorf("args = %v", args)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	if wrapError(nil) != nil {
		t.Error("wrapError(nil) should be nil")
	}
	if err := wrapError(context.DeadlineExceeded); !errors.Is(err, ErrOperationTimeout) {
		t.Errorf("wrapError(DeadlineExceeded) = %v, want ErrOperationTimeout", err)
	}
	plain := errors.New("boom")
	if err := wrapError(plain); err != plain {
		t.Errorf("wrapError(plain) = %v, want unchanged", err)
	}
}

// testPool connects to ORBIT_TEST_POSTGRES_DSN and migrates a throwaway
// schema for the subtest.
func testPool(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	dsn := os.Getenv("ORBIT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ORBIT_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	pool, err := Connect(ctx, dsn, DefaultConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	schema := "orbit_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	if err := Migrate(ctx, pool, schema); err != nil {
		pool.Close()
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	})
	return pool, schema
}

func TestCheckpointer_Integration(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T) checkpoint.Saver {
		return NewCheckpointer(testPool(t))
	})
}

func TestToolCallRepository_Integration(t *testing.T) {
	toolcalltest.Run(t, func(t *testing.T) toolcall.Repository {
		return NewToolCallRepository(testPool(t))
	})
}

func TestSessionStore_Integration(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) session.Store {
		return NewSessionStore(testPool(t))
	})
}
