// Package resilience provides resilient execution patterns using fortify.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"

	"github.com/felixgeelhaar/orbit/domain/tool"
)

// Executor runs tools under a bulkhead and a per-call deadline. Tool
// failures are returned as-is; deciding whether to try again belongs to
// the evaluator.
type Executor struct {
	bulkhead bulkhead.Bulkhead[tool.Result]
	timeout  time.Duration
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent tool executions across sessions.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before
	// a breaker built from this config opens.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts for persistence writes.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// DefaultTimeout bounds tools that do not declare their own timeout.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          30 * time.Second,
	}
}

// NewExecutor creates a new resilient executor.
func NewExecutor(config ExecutorConfig) *Executor {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	timeout := config.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Executor{
		bulkhead: bulkhead.New[tool.Result](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		timeout: timeout,
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// Execute runs a tool with the bulkhead and deadline applied. The tool's
// own Timeout annotation wins over the executor default. A blown deadline
// is reported as tool.ErrExecutionTimeout.
func (e *Executor) Execute(ctx context.Context, t tool.Tool, input json.RawMessage) (tool.Result, error) {
	timeout := e.timeout
	if d := t.Annotations().Timeout; d > 0 {
		timeout = d
	}

	start := time.Now()
	result, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (tool.Result, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := t.Execute(ctx, input)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%w after %s: %v", tool.ErrExecutionTimeout, timeout, err)
		}
		return res, err
	})
	if err == nil && result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result, err
}

// Timeout returns the default per-tool deadline.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}
