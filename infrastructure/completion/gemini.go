package completion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GeminiProvider implements Provider for the Google Gemini generateContent API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(config ProviderConfig) *GeminiProvider {
	return &GeminiProvider{
		apiKey:  config.APIKey,
		baseURL: config.baseURL("https://generativelanguage.googleapis.com"),
		model:   config.Model,
		client:  &http.Client{Timeout: config.timeout()},
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Complete implements Provider. Gemini names the assistant role "model".
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (Response, error) {
	var contents []geminiContent
	var system *geminiContent

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if system == nil {
				system = &geminiContent{}
			}
			system.Parts = append(system.Parts, geminiPart{Text: msg.Content})
			continue
		}
		role := msg.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: msg.Content}}})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))

	var out geminiResponse
	err := postJSON(ctx, p.client, p.Name(), endpoint, nil, geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}, &out)
	if err != nil {
		return Response{}, err
	}

	if out.Error != nil {
		return Response{Error: &APIError{
			Type:    out.Error.Status,
			Message: out.Error.Message,
			Code:    fmt.Sprintf("%d", out.Error.Code),
		}}, nil
	}
	if len(out.Candidates) == 0 {
		return Response{}, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return Response{
		Model:   model,
		Message: Message{Role: "assistant", Content: sb.String()},
		Usage: Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
