package completion

import (
	"context"
	"net/http"
)

// OpenAIProvider implements Provider for the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(config ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  config.APIKey,
		baseURL: config.baseURL("https://api.openai.com"),
		model:   config.Model,
		client:  &http.Client{Timeout: config.timeout()},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	var out openAIChatResponse
	err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		openAIChatRequest{
			Model:       model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		}, &out)
	if err != nil {
		return Response{}, err
	}

	if out.Error != nil {
		return Response{Error: &APIError{Type: out.Error.Type, Message: out.Error.Message, Code: out.Error.Code}}, nil
	}
	if len(out.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		ID:      out.ID,
		Model:   out.Model,
		Message: out.Choices[0].Message,
		Usage:   out.Usage,
	}, nil
}
