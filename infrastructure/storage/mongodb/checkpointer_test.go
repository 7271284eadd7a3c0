package mongodb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/checkpoint/checkpointtest"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.URI != "mongodb://localhost:27017" {
		t.Errorf("URI = %s", cfg.URI)
	}
	if cfg.Database != "orbit" {
		t.Errorf("Database = %s, want orbit", cfg.Database)
	}
	if cfg.QueryTimeout != 5*time.Second {
		t.Errorf("QueryTimeout = %v, want 5s", cfg.QueryTimeout)
	}

	for _, opt := range []ConfigOption{WithURI("mongodb://db:27017"), WithDatabase("prod"), WithQueryTimeout(time.Second)} {
		opt(&cfg)
	}
	if cfg.URI != "mongodb://db:27017" || cfg.Database != "prod" || cfg.QueryTimeout != time.Second {
		t.Errorf("options not applied: %+v", cfg)
	}
}

func TestFromDocument(t *testing.T) {
	t.Parallel()

	cp, err := checkpoint.New(checkpoint.Config{ThreadID: "t"}, checkpointtest.SampleState(), checkpoint.Metadata{Step: 4})
	if err != nil {
		t.Fatal(err)
	}
	blob, err := checkpoint.MarshalState(cp)
	if err != nil {
		t.Fatal(err)
	}

	got, err := fromDocument(&checkpointDocument{ID: cp.ID, ThreadID: "t", SessionID: cp.SessionID, Seq: 1, State: blob, CreatedAt: cp.CreatedAt})
	if err != nil {
		t.Fatalf("fromDocument() error = %v", err)
	}
	if got.ID != cp.ID || got.Metadata.Step != 4 || got.State.CurrentStep != cp.State.CurrentStep {
		t.Errorf("fromDocument() = %+v", got)
	}

	if _, err := fromDocument(&checkpointDocument{State: []byte("{")}); !errors.Is(err, checkpoint.ErrCorrupt) {
		t.Errorf("fromDocument(corrupt) error = %v, want ErrCorrupt", err)
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
	if err := wrapError(errors.New("refused")); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("wrapError(other) = %v, want ErrConnectionFailed", err)
	}
}

func TestCheckpointer_Integration(t *testing.T) {
	uri := os.Getenv("ORBIT_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("ORBIT_TEST_MONGODB_URI not set")
	}

	checkpointtest.Run(t, func(t *testing.T) checkpoint.Saver {
		ctx := context.Background()
		client, err := Connect(ctx, DefaultConfig(), WithURI(uri), WithDatabase("orbit_test_"+uuid.NewString()[:8]))
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		t.Cleanup(func() {
			_ = client.Database().Drop(context.Background())
			_ = client.Close(context.Background())
		})

		saver := NewCheckpointer(client, "")
		if err := saver.EnsureIndexes(ctx); err != nil {
			t.Fatalf("EnsureIndexes() error = %v", err)
		}
		return saver
	})
}
