package providers

import (
	"context"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
)

const openRouterTitle = "SmartAI Chatbot"

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIAdapter speaks the OpenAI chat completions protocol. It serves every
// OpenAI-compatible provider and, with extra headers, OpenRouter.
type OpenAIAdapter struct {
	httpCaller
	family  catalog.Family
	headers map[string]string
}

// NewOpenAIAdapter creates the generic OpenAI-compatible adapter
func NewOpenAIAdapter(opts Options) *OpenAIAdapter {
	return &OpenAIAdapter{
		httpCaller: newHTTPCaller(opts),
		family:     catalog.FamilyOpenAI,
	}
}

// NewOpenRouterAdapter creates an OpenAI-compatible adapter that identifies
// the calling site the way OpenRouter requires.
func NewOpenRouterAdapter(opts Options) *OpenAIAdapter {
	return &OpenAIAdapter{
		httpCaller: newHTTPCaller(opts),
		family:     catalog.FamilyOpenRouter,
		headers: map[string]string{
			"HTTP-Referer": opts.SiteURL,
			"X-Title":      openRouterTitle,
		},
	}
}

func (a *OpenAIAdapter) Family() catalog.Family {
	return a.family
}

// Call sends a chat completion request
func (a *OpenAIAdapter) Call(ctx context.Context, cfg *models.ProviderConfig, apiKey string, req CanonicalRequest) (string, error) {
	payload := openAIChatRequest{
		Model: req.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserMessage},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var out openAIChatResponse
	status, err := a.postJSON(ctx, cfg, cfg.Endpoint(), authFor(cfg, apiKey, "Authorization", "Bearer "), a.headers, payload, &out)
	if err != nil {
		return "", err
	}

	var text string
	if len(out.Choices) > 0 {
		text = out.Choices[0].Message.Content
	}
	return reply(cfg, status, text)
}
