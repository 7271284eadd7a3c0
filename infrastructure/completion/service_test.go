package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/config"
	"github.com/felixgeelhaar/orbit/infrastructure/resilience"
)

type stubProvider struct {
	resp  Response
	err   error
	calls int
	last  Request
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Complete(_ context.Context, req Request) (Response, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func TestClient_Complete(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{resp: Response{Message: Message{Content: "command"}}}
	var observed string
	c := NewClient(ClientConfig{
		Provider: stub,
		Model:    "m",
		Observer: func(provider string, _ time.Duration, _ error) { observed = provider },
	})

	got, err := c.Complete(context.Background(), []agent.Message{
		{Role: agent.RoleSystem, Content: "classify"},
		agent.UserMessage("ls"),
		agent.ToolMessage("output"),
	}, 0)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "command" {
		t.Errorf("Complete() = %q, want command", got)
	}
	if stub.last.Model != "m" || stub.last.Messages[2].Role != "user" {
		t.Errorf("request = %+v", stub.last)
	}
	if observed != "stub" {
		t.Errorf("observer saw %q, want stub", observed)
	}
}

func TestClient_APIErrorIsError(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{resp: Response{Error: &APIError{Type: "invalid_request", Message: "bad"}}}
	_, err := NewClient(ClientConfig{Provider: stub}).Complete(context.Background(), nil, 0)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("Complete() error = %v, want *APIError", err)
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{err: errors.New("connection refused")}
	c := NewClient(ClientConfig{Provider: stub, Breaker: resilience.BreakerConfig{Threshold: 2, Timeout: time.Minute}})

	for i := 0; i < 4; i++ {
		_, _ = c.Complete(context.Background(), nil, 0)
	}
	if stub.calls != 2 {
		t.Errorf("provider calls = %d, want 2 before the breaker opened", stub.calls)
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{resp: Response{Message: Message{Content: "ok"}}}
	c := NewClient(ClientConfig{Provider: stub, RateLimit: 0.001, Burst: 1})

	if _, err := c.Complete(context.Background(), nil, 0); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Complete(ctx, nil, 0); err == nil {
		t.Error("second Complete() should be rate limited")
	}
	if stub.calls != 1 {
		t.Errorf("provider calls = %d, want 1", stub.calls)
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider config.Provider
		want     string
	}{
		{config.ProviderOpenAI, "openai"},
		{config.ProviderAnthropic, "anthropic"},
		{config.ProviderGemini, "gemini"},
		{config.ProviderOllama, "ollama"},
		{config.ProviderMock, "mock"},
	}
	for _, tt := range tests {
		p, err := NewProvider(config.LLMConfig{Provider: tt.provider})
		if err != nil {
			t.Errorf("NewProvider(%s) error = %v", tt.provider, err)
			continue
		}
		if p.Name() != tt.want {
			t.Errorf("NewProvider(%s).Name() = %s, want %s", tt.provider, p.Name(), tt.want)
		}
	}

	if _, err := NewProvider(config.LLMConfig{Provider: "palm"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("NewProvider(palm) error = %v, want ErrUnknownProvider", err)
	}
}

func TestEchoProvider(t *testing.T) {
	t.Parallel()

	svc, err := NewService(config.LLMConfig{Provider: config.ProviderMock}, resilience.DefaultBreakerConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Complete(context.Background(), []agent.Message{agent.UserMessage(" hi ")}, 0.7)
	if err != nil || got != "mock: hi" {
		t.Errorf("Complete() = %q, %v", got, err)
	}
}
