package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

// RetryConfig configures exponential-backoff retries.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryConfig retries twice after the first attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// RetryConfig derives the persistence retry policy from the executor config.
func (c ExecutorConfig) RetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  c.RetryMaxAttempts,
		InitialDelay: c.RetryInitialDelay,
		Multiplier:   c.RetryBackoffMultiplier,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts < 2 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Retry runs fn until it succeeds or the attempts run out. At least one
// retry is always made.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	r := retry.New[T](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    cfg.Multiplier,
	})
	return r.Do(ctx, fn)
}

// RetryErr is Retry for operations that only return an error.
func RetryErr(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	_, err := Retry(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
