package completion

import (
	"context"
	"net/http"
)

// AnthropicProvider implements Provider for the Anthropic messages API.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(config ProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:  config.APIKey,
		baseURL: config.baseURL("https://api.anthropic.com"),
		model:   config.Model,
		client:  &http.Client{Timeout: config.timeout()},
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements Provider. System messages are lifted into the
// top-level system field; consecutive system prompts are joined.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	var system string
	messages := make([]Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		messages = append(messages, msg)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	var out anthropicResponse
	err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/v1/messages",
		map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": "2023-06-01",
		},
		anthropicRequest{
			Model:       model,
			MaxTokens:   maxTokens,
			Messages:    messages,
			System:      system,
			Temperature: req.Temperature,
		}, &out)
	if err != nil {
		return Response{}, err
	}

	if out.Error != nil {
		return Response{Error: &APIError{Type: out.Error.Type, Message: out.Error.Message}}, nil
	}

	var content string
	for _, block := range out.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}

	return Response{
		ID:      out.ID,
		Model:   out.Model,
		Message: Message{Role: out.Role, Content: content},
		Usage: Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
		},
	}, nil
}
