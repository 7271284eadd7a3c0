package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/infrastructure/resilience"
)

// Service is the completion interface the agent stages depend on.
type Service interface {
	Complete(ctx context.Context, messages []agent.Message, temperature float64) (string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, messages []agent.Message, temperature float64) (string, error)

// Complete implements Service.
func (f ServiceFunc) Complete(ctx context.Context, messages []agent.Message, temperature float64) (string, error) {
	return f(ctx, messages, temperature)
}

// Observer is notified after every provider call.
type Observer func(provider string, elapsed time.Duration, err error)

// Client implements Service on top of a Provider, adding rate limiting
// and a circuit breaker.
type Client struct {
	provider  Provider
	model     string
	maxTokens int
	limiter   *rate.Limiter
	breaker   circuitbreaker.CircuitBreaker[Response]
	observer  Observer
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Provider  Provider
	Model     string
	MaxTokens int

	// RateLimit is the sustained requests per second (0 = unlimited).
	RateLimit float64
	Burst     int

	Breaker  resilience.BreakerConfig
	Observer Observer
}

// NewClient creates a completion client.
func NewClient(cfg ClientConfig) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		provider:  cfg.Provider,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   limiter,
		breaker:   resilience.NewBreaker[Response](cfg.Breaker),
		observer:  cfg.Observer,
	}
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Complete implements Service.
func (c *Client) Complete(ctx context.Context, messages []agent.Message, temperature float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	req := Request{
		Model:       c.model,
		Messages:    toProviderMessages(messages),
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	}

	start := time.Now()
	resp, err := c.breaker.Execute(ctx, func(ctx context.Context) (Response, error) {
		resp, err := c.provider.Complete(ctx, req)
		if err == nil && resp.Error != nil {
			err = resp.Error
		}
		return resp, err
	})
	elapsed := time.Since(start)
	if c.observer != nil {
		c.observer(c.provider.Name(), elapsed, err)
	}

	if err != nil {
		logging.Debug().
			Add(logging.Component("completion")).
			Add(logging.Str("provider", c.provider.Name())).
			Add(logging.Duration(elapsed)).
			Add(logging.ErrorField(err)).
			Msg("completion failed")
		return "", fmt.Errorf("%s completion: %w", c.provider.Name(), err)
	}

	logging.Trace().
		Add(logging.Component("completion")).
		Add(logging.Str("provider", c.provider.Name())).
		Add(logging.Duration(elapsed)).
		Add(logging.Count("total_tokens", resp.Usage.TotalTokens)).
		Msg("completion received")
	return resp.Message.Content, nil
}

// toProviderMessages maps transcript roles onto chat roles. Tool output
// is fed back as user-visible context since not every provider accepts a
// tool role without a matching call id.
func toProviderMessages(messages []agent.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if m.Role == agent.RoleTool {
			role = "user"
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}
