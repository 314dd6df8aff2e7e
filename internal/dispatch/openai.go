package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIProvider is a Provider over the OpenAI-compatible chat completions
// API. Several hosted and self-hosted backends speak this shape, so the
// provider name is configurable.
type OpenAIProvider struct {
	name    string
	baseURL string
	httpc   *http.Client
}

// NewOpenAIProvider creates a provider client. baseURL defaults to the
// OpenAI endpoint when empty.
func NewOpenAIProvider(name, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAIProvider{
		name:    name,
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return p.name }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat implements Provider with one synchronous completion call.
func (p *OpenAIProvider) Chat(ctx context.Context, req ProviderRequest) (ProviderResponse, error) {
	payload := openAIRequest{Model: req.Model}
	if req.SystemPrompt != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	payload.Messages = append(payload.Messages, openAIMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(payload)
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("read chat response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ProviderResponse{}, fmt.Errorf("parse chat response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return ProviderResponse{}, fmt.Errorf("provider returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return ProviderResponse{}, fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return ProviderResponse{}, fmt.Errorf("provider returned no choices")
	}

	return ProviderResponse{
		Content:    parsed.Choices[0].Message.Content,
		Modalities: []string{"text"},
	}, nil
}
