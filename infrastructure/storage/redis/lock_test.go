package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/lock"
	"github.com/felixgeelhaar/orbit/domain/lock/locktest"
)

func TestLocker_key(t *testing.T) {
	t.Parallel()

	l := NewCheckpointerFromClient(nil, "orbit:").Locker()
	if got := l.key("t1"); got != "orbit:lock:t1" {
		t.Errorf("key = %s, want orbit:lock:t1", got)
	}
}

func TestLocker_Integration(t *testing.T) {
	addr := os.Getenv("ORBIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ORBIT_TEST_REDIS_ADDR not set")
	}

	locktest.Run(t, func(t *testing.T) lock.Locker {
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
		return NewLocker(client, prefix)
	})
}
