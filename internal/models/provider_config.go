package models

import (
	"time"

	"github.com/google/uuid"

	"smartai_gateway/internal/catalog"
)

// ProviderStatus is the lifecycle state of a stored provider config.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "Active"
	ProviderStatusInactive ProviderStatus = "Inactive"
)

// ProviderConfig is an operator-managed provider record.
// Zero-valued numeric fields and an empty endpoint or model defer to the catalog.
type ProviderConfig struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	DisplayName     string         `db:"display_name" json:"display_name"`
	APIEndpoint     string         `db:"api_endpoint" json:"api_endpoint"`
	ModelName       string         `db:"model_name" json:"model_name"`
	EncryptedAPIKey string         `db:"encrypted_api_key" json:"-"`
	RateLimit       int            `db:"rate_limit" json:"rate_limit"`
	MaxTokens       int            `db:"max_tokens" json:"max_tokens"`
	Temperature     *float64       `db:"temperature" json:"temperature,omitempty"`
	Priority        int            `db:"priority" json:"priority"`
	Status          ProviderStatus `db:"status" json:"status"`
	IsFallback      bool           `db:"is_fallback" json:"is_fallback"`
	IsLocal         bool           `db:"is_local" json:"is_local"`
	TimeoutSeconds  int            `db:"timeout_seconds" json:"timeout_seconds"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

func (p *ProviderConfig) IsActive() bool {
	return p.Status == ProviderStatusActive
}

// Descriptor returns the catalog entry for this identity, if there is one.
func (p *ProviderConfig) Descriptor() (catalog.Descriptor, bool) {
	d, err := catalog.Lookup(p.Name)
	if err != nil {
		return catalog.Descriptor{}, false
	}
	return d, true
}

func (p *ProviderConfig) Family() catalog.Family {
	return catalog.FamilyOf(p.Name)
}

// Endpoint returns the stored endpoint, falling back to the catalog's.
func (p *ProviderConfig) Endpoint() string {
	if p.APIEndpoint != "" {
		return p.APIEndpoint
	}
	if d, ok := p.Descriptor(); ok {
		return d.Endpoint
	}
	return ""
}

// Model returns the stored model name, falling back to the catalog's first model.
func (p *ProviderConfig) Model() string {
	if p.ModelName != "" {
		return p.ModelName
	}
	if d, ok := p.Descriptor(); ok {
		return d.DefaultModel()
	}
	return ""
}

// EffectiveRateLimit returns the per-minute budget: stored value, catalog value,
// then catalog.DefaultRateLimit.
func (p *ProviderConfig) EffectiveRateLimit() int {
	if p.RateLimit > 0 {
		return p.RateLimit
	}
	if d, ok := p.Descriptor(); ok && d.RateLimit > 0 {
		return d.RateLimit
	}
	return catalog.DefaultRateLimit
}

// EffectiveMaxTokens clamps the requested completion size to the family ceiling.
func (p *ProviderConfig) EffectiveMaxTokens() int {
	n := p.MaxTokens
	if n <= 0 {
		n = catalog.DefaultMaxTokens
	}
	return min(n, catalog.TokenCeiling(p.Family()))
}

func (p *ProviderConfig) EffectiveTemperature(fallback float64) float64 {
	if p.Temperature != nil {
		return *p.Temperature
	}
	return fallback
}

// Local reports whether the provider runs on-box, per config or catalog.
func (p *ProviderConfig) Local() bool {
	if p.IsLocal {
		return true
	}
	d, ok := p.Descriptor()
	return ok && d.IsLocal
}

// Timeout returns the per-call timeout: the stored override, else local or remote default.
func (p *ProviderConfig) Timeout(remote, local time.Duration) time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	if p.Local() {
		return local
	}
	return remote
}
