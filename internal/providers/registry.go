package providers

import (
	"sort"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
)

// Registry maps adapter families to their adapter. The table is built once
// and only read afterwards, so a Registry is safe for concurrent use.
type Registry struct {
	adapters map[catalog.Family]Adapter
	fallback Adapter
}

// NewRegistry creates a registry with every built-in family. All adapters
// share one HTTP client.
func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()

	generic := NewOpenAIAdapter(opts)
	r := &Registry{
		adapters: make(map[catalog.Family]Adapter),
		fallback: generic,
	}
	for _, a := range []Adapter{
		generic,
		NewOpenRouterAdapter(opts),
		NewGeminiAdapter(opts),
		NewAnthropicAdapter(opts),
		NewHuggingFaceAdapter(opts),
		NewOllamaAdapter(opts),
	} {
		r.adapters[a.Family()] = a
	}
	return r
}

// Resolve returns the adapter for cfg's provider identity. Identities the
// catalog does not know use the generic OpenAI-compatible adapter.
func (r *Registry) Resolve(cfg *models.ProviderConfig) Adapter {
	if a, ok := r.adapters[cfg.Family()]; ok {
		return a
	}
	return r.fallback
}

// SupportedFamilies returns the registered families in sorted order.
func (r *Registry) SupportedFamilies() []catalog.Family {
	families := make([]catalog.Family, 0, len(r.adapters))
	for f := range r.adapters {
		families = append(families, f)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}
