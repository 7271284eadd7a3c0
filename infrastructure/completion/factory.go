package completion

import (
	"fmt"

	"github.com/felixgeelhaar/orbit/domain/config"
	"github.com/felixgeelhaar/orbit/infrastructure/resilience"
)

// NewProvider builds the provider named by cfg.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	pc := ProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(pc), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(pc), nil
	case config.ProviderGemini:
		return NewGeminiProvider(pc), nil
	case config.ProviderOllama:
		return NewOllamaProvider(pc), nil
	case config.ProviderMock:
		return EchoProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NewService builds a rate-limited, breaker-guarded client for cfg.
func NewService(cfg config.LLMConfig, breaker resilience.BreakerConfig, observer Observer) (*Client, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(ClientConfig{
		Provider:  provider,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Breaker:   breaker,
		Observer:  observer,
	}), nil
}
