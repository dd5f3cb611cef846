package providers

import (
	"context"
	"errors"
	"fmt"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
)

// ErrEmptyReply is the cause used when a provider answers 2xx without text.
var ErrEmptyReply = errors.New("provider returned an empty reply")

// ErrMissingAPIKey is the cause used when a remote provider has no stored key.
var ErrMissingAPIKey = errors.New("api key is required")

// CanonicalRequest is the provider-neutral request every adapter translates
// into its own wire payload.
type CanonicalRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// Adapter is implemented by each wire family (OpenAI-compatible, Gemini, ...).
type Adapter interface {
	// Family returns the adapter family this implementation speaks.
	Family() catalog.Family

	// Call sends req to the provider described by cfg and returns the reply
	// text. Every failure is a *ProviderError.
	Call(ctx context.Context, cfg *models.ProviderConfig, apiKey string, req CanonicalRequest) (string, error)
}

// ProviderError describes a failed provider call.
// StatusCode is 0 when no HTTP response was received.
type ProviderError struct {
	ProviderName string
	StatusCode   int
	Cause        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed with status %d: %v", e.ProviderName, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("provider %s failed: %v", e.ProviderName, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError wraps cause for the named provider.
func NewProviderError(provider string, status int, cause error) *ProviderError {
	return &ProviderError{ProviderName: provider, StatusCode: status, Cause: cause}
}

// NewCanonicalRequest fills model, token and temperature settings from cfg.
func NewCanonicalRequest(cfg *models.ProviderConfig, systemPrompt, userMessage string, defaultTemperature float64) CanonicalRequest {
	return CanonicalRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  userMessage,
		Model:        cfg.Model(),
		MaxTokens:    cfg.EffectiveMaxTokens(),
		Temperature:  cfg.EffectiveTemperature(defaultTemperature),
	}
}
