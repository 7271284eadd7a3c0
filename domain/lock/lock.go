// Package lock defines leases that keep two runs off the same thread.
package lock

import (
	"context"
	"errors"
	"time"
)

// Locker grants exclusive, expiring leases on string keys. Each
// successful Acquire returns a token; only that token can extend or
// release the lease, so two holders in one process never share a lease.
type Locker interface {
	// Acquire returns ErrHeld when another token holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)

	// Release drops the lease. ErrNotHeld means it expired or was taken over.
	Release(ctx context.Context, key, token string) error

	// Extend pushes the expiry of a held lease to now+ttl.
	Extend(ctx context.Context, key, token string, ttl time.Duration) error

	// IsHeld reports whether any unexpired lease exists for key.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Errors returned by lockers.
var (
	ErrHeld       = errors.New("lock already held by another owner")
	ErrNotHeld    = errors.New("lock not held")
	ErrInvalidTTL = errors.New("invalid TTL")
)

// DefaultTTL is the lease length used by Hold when none is given.
const DefaultTTL = 30 * time.Second

// Hold acquires key and keeps the lease alive by extending it every ttl/2
// until the returned release is called. Release is idempotent.
func Hold(ctx context.Context, l Locker, key string, ttl time.Duration, onLost func(error)) (release func(), err error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := l.Extend(context.WithoutCancel(ctx), key, token, ttl); err != nil {
					if onLost != nil {
						onLost(err)
					}
					return
				}
			}
		}
	}()

	var released bool
	return func() {
		if released {
			return
		}
		released = true
		close(stop)
		<-done
		_ = l.Release(context.WithoutCancel(ctx), key, token)
	}, nil
}
