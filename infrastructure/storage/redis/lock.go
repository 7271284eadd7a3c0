package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/orbit/domain/lock"
)

// Scripts compare the token before touching the key so a holder whose
// lease expired cannot drop or extend its successor's lease.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker implements lock.Locker with SET NX PX, so leases are shared by
// every orbit process using the same Redis.
type Locker struct {
	client    *redis.Client
	keyPrefix string
}

// NewLocker creates a locker on an existing client.
func NewLocker(client *redis.Client, keyPrefix string) *Locker {
	return &Locker{client: client, keyPrefix: keyPrefix}
}

// Locker returns a locker sharing the checkpointer's client and prefix.
func (c *Checkpointer) Locker() *Locker {
	return NewLocker(c.client, c.keyPrefix)
}

func (l *Locker) key(key string) string {
	return l.keyPrefix + "lock:" + key
}

// Acquire implements lock.Locker.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", lock.ErrInvalidTTL
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(key), token, ttl).Result()
	if err != nil {
		return "", wrapError(err)
	}
	if !ok {
		return "", lock.ErrHeld
	}
	return token, nil
}

// Release implements lock.Locker.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key(key)}, token).Int()
	if err != nil {
		return wrapError(err)
	}
	if n == 0 {
		return lock.ErrNotHeld
	}
	return nil
}

// Extend implements lock.Locker.
func (l *Locker) Extend(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return lock.ErrInvalidTTL
	}
	n, err := extendScript.Run(ctx, l.client, []string{l.key(key)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return wrapError(err)
	}
	if n == 0 {
		return lock.ErrNotHeld
	}
	return nil
}

// IsHeld implements lock.Locker.
func (l *Locker) IsHeld(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, wrapError(err)
	}
	return n > 0, nil
}
