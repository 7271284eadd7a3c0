package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/checkpoint/checkpointtest"
)

func TestNewCheckpointerFromClient(t *testing.T) {
	t.Parallel()

	c := NewCheckpointerFromClient(nil, "test:")
	if c.keyPrefix != "test:" {
		t.Errorf("keyPrefix = %s, want test:", c.keyPrefix)
	}
	if c.client != nil {
		t.Error("client should be nil")
	}
	if c.WithTTL(0).ttl != 0 {
		t.Error("ttl should default to zero")
	}
}

func TestCheckpointer_keys(t *testing.T) {
	t.Parallel()

	c := NewCheckpointerFromClient(nil, "orbit:")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"entry", c.entryKey("abc"), "orbit:checkpoint:abc"},
		{"thread", c.threadKey("t1"), "orbit:thread:t1"},
		{"sequence", c.seqKey("t1"), "orbit:thread-seq:t1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.expected {
				t.Errorf("key = %s, want %s", tt.got, tt.expected)
			}
		})
	}
}

func TestCheckpointer_Validation(t *testing.T) {
	t.Parallel()

	c := NewCheckpointerFromClient(nil, "test:")
	ctx := context.Background()

	if _, err := c.Get(ctx, checkpoint.Config{}); !errors.Is(err, checkpoint.ErrInvalidThreadID) {
		t.Errorf("Get(empty) error = %v, want ErrInvalidThreadID", err)
	}
	if _, err := c.Put(ctx, checkpoint.Config{}, nil, checkpoint.Metadata{}); !errors.Is(err, checkpoint.ErrNilState) {
		t.Errorf("Put(nil) error = %v, want ErrNilState", err)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	t.Parallel()

	if _, err := decode([]byte("not json")); !errors.Is(err, checkpoint.ErrCorrupt) {
		t.Errorf("decode() error = %v, want ErrCorrupt", err)
	}
	if _, err := decode([]byte(`{"id":"x","state":{}}`)); !errors.Is(err, checkpoint.ErrCorrupt) {
		t.Errorf("decode(no state) error = %v, want ErrCorrupt", err)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	if wrapError(nil) != nil {
		t.Error("wrapError(nil) should be nil")
	}
	err := wrapError(context.DeadlineExceeded)
	if !errors.Is(err, ErrOperationTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("wrapError(DeadlineExceeded) = %v", err)
	}
	original := errors.New("some redis error")
	if wrapError(original) != original {
		t.Error("wrapError() should return other errors unchanged")
	}
}

func TestCheckpointer_Integration(t *testing.T) {
	addr := os.Getenv("ORBIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ORBIT_TEST_REDIS_ADDR not set")
	}

	checkpointtest.Run(t, func(t *testing.T) checkpoint.Saver {
		client, err := NewClient(DefaultConfig(), WithAddress(addr))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		prefix := "orbit-test:" + uuid.NewString() + ":"
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			_ = client.Close()
		})
		return NewCheckpointerFromClient(client, prefix)
	})
}
