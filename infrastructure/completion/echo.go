package completion

import (
	"context"
	"strings"
)

// EchoProvider is the offline "mock" provider. It answers every request
// by echoing the last user message, which classifies as a question and
// yields a plain reply. Useful for wiring checks without an API key.
type EchoProvider struct{}

// Name returns the provider name.
func (EchoProvider) Name() string { return "mock" }

// Complete implements Provider.
func (EchoProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	return Response{
		Model:   "mock",
		Message: Message{Role: "assistant", Content: "mock: " + strings.TrimSpace(last)},
	}, nil
}
