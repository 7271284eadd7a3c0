package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/orbit/domain/lock"
)

// Locker implements lock.Locker within one process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]lease
	now   func() time.Time
}

type lease struct {
	token     string
	expiresAt time.Time
}

// NewLocker creates an empty in-memory locker.
func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]lease),
		now:   time.Now,
	}
}

// Acquire implements lock.Locker.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", lock.ErrInvalidTTL
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.locks[key]; ok && cur.expiresAt.After(now) {
		return "", lock.ErrHeld
	}
	token := uuid.NewString()
	l.locks[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// Release implements lock.Locker.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.locks[key]
	if !ok || cur.token != token {
		return lock.ErrNotHeld
	}
	delete(l.locks, key)
	return nil
}

// Extend implements lock.Locker.
func (l *Locker) Extend(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return lock.ErrInvalidTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cur, ok := l.locks[key]
	if !ok || cur.token != token || !cur.expiresAt.After(now) {
		return lock.ErrNotHeld
	}
	cur.expiresAt = now.Add(ttl)
	l.locks[key] = cur
	return nil
}

// IsHeld implements lock.Locker.
func (l *Locker) IsHeld(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.locks[key]
	return ok && cur.expiresAt.After(l.now()), nil
}
