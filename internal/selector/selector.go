// Package selector chooses which configured provider serves a chat call.
//
// Providers are tried in priority order. A provider whose per-minute window is
// exhausted is skipped. When every active provider is limited, the fallback
// providers are used regardless of their own limits.
package selector

import (
	"context"
	"fmt"

	"smartai_gateway/internal/models"
	"smartai_gateway/internal/ratelimit"
	"smartai_gateway/internal/utils"
)

// ProviderStore lists provider configs ordered by ascending priority.
type ProviderStore interface {
	ListActive(ctx context.Context) ([]*models.ProviderConfig, error)
	ListFallback(ctx context.Context) ([]*models.ProviderConfig, error)
}

// Selector picks providers using the store and the rate limiter.
type Selector struct {
	store   ProviderStore
	limiter ratelimit.Limiter
	logger  *utils.Logger
}

func New(store ProviderStore, limiter ratelimit.Limiter) *Selector {
	if limiter == nil {
		limiter = ratelimit.NewNoopLimiter()
	}
	return &Selector{
		store:   store,
		limiter: limiter,
		logger:  utils.NewLogger("selector"),
	}
}

// SelectBest returns the highest-priority active provider that is not rate
// limited, else the first fallback, else nil. A nil result with a nil error
// means no provider is available.
func (s *Selector) SelectBest(ctx context.Context) (*models.ProviderConfig, error) {
	candidates, err := s.Candidates(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

// Candidates returns up to limit providers in the order they should be tried.
// The first element is always what SelectBest would return.
func (s *Selector) Candidates(ctx context.Context, limit int) ([]*models.ProviderConfig, error) {
	if limit <= 0 {
		return nil, nil
	}

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active providers: %w", err)
	}

	out := make([]*models.ProviderConfig, 0, limit)
	seen := make(map[string]struct{})
	add := func(p *models.ProviderConfig) bool {
		if _, dup := seen[p.Name]; dup {
			return len(out) < limit
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
		return len(out) < limit
	}

	for _, p := range active {
		status := s.limiter.CheckLimit(ctx, p.Name, p.EffectiveRateLimit())
		if status.IsLimited {
			s.logger.Debug("Provider rate limited", "provider", p.Name, "count", status.CurrentCount, "limit", status.Limit)
			continue
		}
		if !add(p) {
			return out, nil
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	fallbacks, err := s.store.ListFallback(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fallback providers: %w", err)
	}
	for _, p := range fallbacks {
		if !add(p) {
			break
		}
	}
	if len(out) > 0 {
		s.logger.Info("All priority providers limited, using fallback", "provider", out[0].Name)
	}
	return out, nil
}
