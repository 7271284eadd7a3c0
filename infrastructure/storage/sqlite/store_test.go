package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/checkpoint/checkpointtest"
	"github.com/felixgeelhaar/orbit/domain/toolcall"
	"github.com/felixgeelhaar/orbit/domain/toolcall/toolcalltest"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/sqlite"
)

func TestCheckpointer(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T) checkpoint.Saver {
		saver, err := sqlite.NewCheckpointer(sqlite.DefaultConfig(), sqlite.WithDSN("file:"+t.TempDir()+"/cp.db?mode=rwc"))
		if err != nil {
			t.Fatalf("NewCheckpointer failed: %v", err)
		}
		t.Cleanup(func() { _ = saver.Close() })
		return saver
	})
}

func TestToolCallRepository(t *testing.T) {
	toolcalltest.Run(t, func(t *testing.T) toolcall.Repository {
		repo, err := sqlite.NewToolCallRepository(sqlite.DefaultConfig(), sqlite.WithDSN("file:"+t.TempDir()+"/calls.db?mode=rwc"))
		if err != nil {
			t.Fatalf("NewToolCallRepository failed: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestOpen_SharedHandle(t *testing.T) {
	db := openShared(t)

	saver, err := sqlite.NewCheckpointerFromDB(db)
	if err != nil {
		t.Fatalf("NewCheckpointerFromDB failed: %v", err)
	}
	repo, err := sqlite.NewToolCallRepositoryFromDB(db)
	if err != nil {
		t.Fatalf("NewToolCallRepositoryFromDB failed: %v", err)
	}
	if _, err := sqlite.NewEventStoreFromDB(db); err != nil {
		t.Fatalf("NewEventStoreFromDB failed: %v", err)
	}

	ctx := context.Background()
	cfg, err := saver.Put(ctx, checkpoint.Config{}, checkpointtest.SampleState(), checkpoint.Metadata{Source: checkpoint.SourceInput})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := saver.Get(ctx, cfg)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CreatedAt.IsZero() || got.SessionID != "session-1" {
		t.Errorf("Get() = %+v", got)
	}

	id, err := repo.Create(ctx, "session-1", "shell_exec", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rec, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.Inputs) != "{}" {
		t.Errorf("Inputs = %s, want {}", rec.Inputs)
	}
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := sqlite.Open(sqlite.DefaultConfig(), sqlite.WithDSN("file:"+t.TempDir()+"/missing/dir/x.db?mode=ro"))
	if !errors.Is(err, sqlite.ErrConnectionFailed) && !errors.Is(err, sqlite.ErrMigrationFailed) {
		t.Errorf("Open() error = %v, want ErrConnectionFailed", err)
	}
}

func openShared(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(sqlite.DefaultConfig(), sqlite.WithDSN("file:"+t.TempDir()+"/orbit.db?mode=rwc"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
