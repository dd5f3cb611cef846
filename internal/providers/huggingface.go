package providers

import (
	"context"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
)

type huggingFaceRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxNewTokens   int     `json:"max_new_tokens"`
		Temperature    float64 `json:"temperature"`
		ReturnFullText bool    `json:"return_full_text"`
	} `json:"parameters"`
}

type huggingFaceGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// HuggingFaceAdapter calls the Hugging Face text-generation inference API.
// The model is part of the endpoint URL.
type HuggingFaceAdapter struct {
	httpCaller
}

func NewHuggingFaceAdapter(opts Options) *HuggingFaceAdapter {
	return &HuggingFaceAdapter{httpCaller: newHTTPCaller(opts)}
}

func (a *HuggingFaceAdapter) Family() catalog.Family {
	return catalog.FamilyHuggingFace
}

func (a *HuggingFaceAdapter) Call(ctx context.Context, cfg *models.ProviderConfig, apiKey string, req CanonicalRequest) (string, error) {
	var payload huggingFaceRequest
	payload.Inputs = joinPrompt(req)
	payload.Parameters.MaxNewTokens = req.MaxTokens
	payload.Parameters.Temperature = req.Temperature

	var out []huggingFaceGeneration
	status, err := a.postJSON(ctx, cfg, cfg.Endpoint(), authFor(cfg, apiKey, "Authorization", "Bearer "), nil, payload, &out)
	if err != nil {
		return "", err
	}

	var text string
	if len(out) > 0 {
		text = out[0].GeneratedText
	}
	return reply(cfg, status, text)
}
