package providers

import (
	"context"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
)

const anthropicVersion = "2023-06-01"

type anthropicRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []openAIMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// AnthropicAdapter calls the Anthropic Messages API.
type AnthropicAdapter struct {
	httpCaller
}

func NewAnthropicAdapter(opts Options) *AnthropicAdapter {
	return &AnthropicAdapter{httpCaller: newHTTPCaller(opts)}
}

func (a *AnthropicAdapter) Family() catalog.Family {
	return catalog.FamilyAnthropic
}

func (a *AnthropicAdapter) Call(ctx context.Context, cfg *models.ProviderConfig, apiKey string, req CanonicalRequest) (string, error) {
	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  []openAIMessage{{Role: "user", Content: req.UserMessage}},
	}
	headers := map[string]string{"anthropic-version": anthropicVersion}

	var out anthropicResponse
	status, err := a.postJSON(ctx, cfg, cfg.Endpoint(), authFor(cfg, apiKey, "x-api-key", ""), headers, payload, &out)
	if err != nil {
		return "", err
	}

	var text string
	if len(out.Content) > 0 {
		text = out.Content[0].Text
	}
	return reply(cfg, status, text)
}
