package resilience

import (
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// BreakerConfig configures a circuit breaker guarding a remote dependency
// such as the command bridge or a completion provider.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int

	// Timeout is how long the circuit stays open.
	Timeout time.Duration

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests int
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, Timeout: 30 * time.Second, MaxRequests: 1}
}

// BreakerConfig derives a breaker config from the executor config.
func (c ExecutorConfig) BreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold:   c.CircuitBreakerThreshold,
		Timeout:     c.CircuitBreakerTimeout,
		MaxRequests: 1,
	}
}

// NewBreaker builds a circuit breaker for calls returning T.
func NewBreaker[T any](cfg BreakerConfig) circuitbreaker.CircuitBreaker[T] {
	d := DefaultBreakerConfig()
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = d.Threshold
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = d.Timeout
	}
	probes := cfg.MaxRequests
	if probes <= 0 {
		probes = d.MaxRequests
	}

	return circuitbreaker.New[T](circuitbreaker.Config{
		MaxRequests: uint32(probes), // #nosec G115 -- bounds checked above
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
		},
	})
}
