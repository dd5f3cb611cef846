package providers

import (
	"context"
	"net/url"
	"strings"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiAdapter calls the Google Generative Language generateContent API.
// The key travels in x-goog-api-key rather than the query string.
type GeminiAdapter struct {
	httpCaller
}

func NewGeminiAdapter(opts Options) *GeminiAdapter {
	return &GeminiAdapter{httpCaller: newHTTPCaller(opts)}
}

func (a *GeminiAdapter) Family() catalog.Family {
	return catalog.FamilyGemini
}

func (a *GeminiAdapter) Call(ctx context.Context, cfg *models.ProviderConfig, apiKey string, req CanonicalRequest) (string, error) {
	var payload geminiRequest
	payload.Contents = []geminiContent{{Parts: []geminiPart{{Text: joinPrompt(req)}}}}
	payload.GenerationConfig.MaxOutputTokens = req.MaxTokens
	payload.GenerationConfig.Temperature = req.Temperature

	endpoint := strings.ReplaceAll(cfg.Endpoint(), "{model}", url.PathEscape(req.Model))

	var out geminiResponse
	status, err := a.postJSON(ctx, cfg, endpoint, authFor(cfg, apiKey, "x-goog-api-key", ""), nil, payload, &out)
	if err != nil {
		return "", err
	}

	var text string
	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		text = out.Candidates[0].Content.Parts[0].Text
	}
	return reply(cfg, status, text)
}
