// Package locktest provides a conformance suite for lock.Locker
// implementations.
package locktest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/orbit/domain/lock"
)

// Factory returns a fresh locker for one subtest.
type Factory func(t *testing.T) lock.Locker

// Run exercises the Locker contract.
func Run(t *testing.T, newLocker Factory) {
	t.Helper()

	t.Run("exclusive", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		token, err := l.Acquire(ctx, "thread-1", time.Minute)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if token == "" {
			t.Fatal("Acquire() returned an empty token")
		}
		if _, err := l.Acquire(ctx, "thread-1", time.Minute); !errors.Is(err, lock.ErrHeld) {
			t.Errorf("second Acquire() error = %v, want ErrHeld", err)
		}
		if _, err := l.Acquire(ctx, "thread-2", time.Minute); err != nil {
			t.Errorf("Acquire(other key) error = %v", err)
		}

		held, err := l.IsHeld(ctx, "thread-1")
		if err != nil || !held {
			t.Errorf("IsHeld() = %v, %v, want true", held, err)
		}
	})

	t.Run("release requires token", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		token, err := l.Acquire(ctx, "k", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if err := l.Release(ctx, "k", "someone-else"); !errors.Is(err, lock.ErrNotHeld) {
			t.Errorf("Release(wrong token) error = %v, want ErrNotHeld", err)
		}
		if err := l.Release(ctx, "k", token); err != nil {
			t.Errorf("Release() error = %v", err)
		}
		if err := l.Release(ctx, "k", token); !errors.Is(err, lock.ErrNotHeld) {
			t.Errorf("second Release() error = %v, want ErrNotHeld", err)
		}
		if _, err := l.Acquire(ctx, "k", time.Minute); err != nil {
			t.Errorf("Acquire() after release error = %v", err)
		}
	})

	t.Run("expiry", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		token, err := l.Acquire(ctx, "k", 50*time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		time.Sleep(120 * time.Millisecond)

		if held, _ := l.IsHeld(ctx, "k"); held {
			t.Error("IsHeld() = true after expiry")
		}
		if err := l.Extend(ctx, "k", token, time.Minute); !errors.Is(err, lock.ErrNotHeld) {
			t.Errorf("Extend(expired) error = %v, want ErrNotHeld", err)
		}
		next, err := l.Acquire(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("Acquire() after expiry error = %v", err)
		}
		if err := l.Release(ctx, "k", token); !errors.Is(err, lock.ErrNotHeld) {
			t.Errorf("stale Release() error = %v, want ErrNotHeld", err)
		}
		if err := l.Release(ctx, "k", next); err != nil {
			t.Errorf("Release() error = %v", err)
		}
	})

	t.Run("extend", func(t *testing.T) {
		l := newLocker(t)
		ctx := context.Background()

		token, err := l.Acquire(ctx, "k", 80*time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		if err := l.Extend(ctx, "k", token, time.Minute); err != nil {
			t.Fatalf("Extend() error = %v", err)
		}
		time.Sleep(120 * time.Millisecond)
		if held, _ := l.IsHeld(ctx, "k"); !held {
			t.Error("IsHeld() = false after Extend")
		}
	})

	t.Run("invalid ttl", func(t *testing.T) {
		l := newLocker(t)
		if _, err := l.Acquire(context.Background(), "k", 0); !errors.Is(err, lock.ErrInvalidTTL) {
			t.Errorf("Acquire(0) error = %v, want ErrInvalidTTL", err)
		}
	})
}
