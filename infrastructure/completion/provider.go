// Package completion provides chat-completion providers and the service
// the agent stages use to talk to them.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Provider is a chat-completion backend.
type Provider interface {
	// Complete sends a chat completion request and returns the response.
	Complete(ctx context.Context, req Request) (Response, error)

	// Name returns the provider name for logging.
	Name() string
}

// Request represents a chat completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Response represents a chat completion response.
type Response struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Message Message   `json:"message"`
	Usage   Usage     `json:"usage"`
	Error   *APIError `json:"error,omitempty"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError represents an error reported in a provider response body.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Type + ": " + e.Message + " (" + e.Code + ")"
	}
	return e.Type + ": " + e.Message
}

// ProviderConfig contains common provider configuration.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration // default 120s
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 120 * time.Second
	}
	return c.Timeout
}

func (c ProviderConfig) baseURL(def string) string {
	if c.BaseURL == "" {
		return def
	}
	return c.BaseURL
}

// Errors returned by the completion layer.
var (
	// ErrProviderStatus indicates a non-200 response.
	ErrProviderStatus = errors.New("provider returned an error status")

	// ErrEmptyResponse indicates a response without any candidate text.
	ErrEmptyResponse = errors.New("provider returned no content")

	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown completion provider")

	// ErrScriptExhausted indicates a scripted service ran out of replies.
	ErrScriptExhausted = errors.New("completion script exhausted")
)

// maxErrorBody bounds how much of an error body is echoed back.
const maxErrorBody = 300

// sanitizeProviderError builds a status error without leaking whole
// response bodies (which may echo prompts) into logs.
func sanitizeProviderError(provider string, status int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(body)
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return fmt.Errorf("%w: %s (status %d): %s", ErrProviderStatus, provider, status, msg)
}
