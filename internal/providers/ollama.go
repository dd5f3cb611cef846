package providers

import (
	"context"
	"strings"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
)

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		NumPredict  int     `json:"num_predict"`
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type ollamaResponse struct {
	Message openAIMessage `json:"message"`
}

// OllamaAdapter calls a local Ollama server's /chat endpoint without streaming.
type OllamaAdapter struct {
	httpCaller
}

func NewOllamaAdapter(opts Options) *OllamaAdapter {
	return &OllamaAdapter{httpCaller: newHTTPCaller(opts)}
}

func (a *OllamaAdapter) Family() catalog.Family {
	return catalog.FamilyOllama
}

func (a *OllamaAdapter) Call(ctx context.Context, cfg *models.ProviderConfig, apiKey string, req CanonicalRequest) (string, error) {
	payload := ollamaRequest{
		Model: req.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserMessage},
		},
	}
	payload.Options.NumPredict = req.MaxTokens
	payload.Options.Temperature = req.Temperature

	var out ollamaResponse
	status, err := a.postJSON(ctx, cfg, ollamaChatURL(cfg.Endpoint()), noAuth{}, nil, payload, &out)
	if err != nil {
		return "", err
	}
	return reply(cfg, status, out.Message.Content)
}

func ollamaChatURL(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, "/chat") {
		return endpoint
	}
	return endpoint + "/chat"
}
