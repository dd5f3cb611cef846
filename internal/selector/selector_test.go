package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartai_gateway/internal/models"
	"smartai_gateway/internal/ratelimit"
)

type fakeStore struct {
	providers []*models.ProviderConfig
	err       error
}

func (f *fakeStore) ListActive(ctx context.Context) ([]*models.ProviderConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.ProviderConfig
	for _, p := range f.providers {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListFallback(ctx context.Context) ([]*models.ProviderConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.ProviderConfig
	for _, p := range f.providers {
		if p.IsActive() && p.IsFallback {
			out = append(out, p)
		}
	}
	return out, nil
}

func setupTestLimiter(t *testing.T) *ratelimit.RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return ratelimit.NewRedisLimiter(client, ratelimit.DefaultPrefix)
}

func provider(name string, priority, limit int, fallback bool) *models.ProviderConfig {
	return &models.ProviderConfig{
		Name:       name,
		Priority:   priority,
		RateLimit:  limit,
		Status:     models.ProviderStatusActive,
		IsFallback: fallback,
	}
}

func exhaust(t *testing.T, l ratelimit.Limiter, name string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Increment(context.Background(), name)
		require.NoError(t, err)
	}
}

func TestSelectBest_FirstByPriority(t *testing.T) {
	store := &fakeStore{providers: []*models.ProviderConfig{
		provider("groq", 1, 30, false),
		provider("openrouter", 2, 50, false),
	}}
	s := New(store, setupTestLimiter(t))

	p, err := s.SelectBest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "groq", p.Name)
}

func TestSelectBest_SkipsLimitedProvider(t *testing.T) {
	limiter := setupTestLimiter(t)
	store := &fakeStore{providers: []*models.ProviderConfig{
		provider("groq", 1, 2, false),
		provider("openrouter", 2, 50, false),
	}}
	exhaust(t, limiter, "groq", 2)

	p, err := New(store, limiter).SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name)
}

func TestSelectBest_AllLimitedUsesFallback(t *testing.T) {
	limiter := setupTestLimiter(t)
	store := &fakeStore{providers: []*models.ProviderConfig{
		provider("groq", 1, 1, false),
		provider("ollama", 5, 1, true),
	}}
	exhaust(t, limiter, "groq", 1)
	exhaust(t, limiter, "ollama", 1)

	p, err := New(store, limiter).SelectBest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ollama", p.Name, "fallback is returned even when limited")
}

func TestSelectBest_AllLimitedNoFallback(t *testing.T) {
	limiter := setupTestLimiter(t)
	store := &fakeStore{providers: []*models.ProviderConfig{provider("groq", 1, 1, false)}}
	exhaust(t, limiter, "groq", 1)

	p, err := New(store, limiter).SelectBest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSelectBest_EmptyStore(t *testing.T) {
	p, err := New(&fakeStore{}, nil).SelectBest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSelectBest_InactiveIgnored(t *testing.T) {
	inactive := provider("groq", 1, 30, true)
	inactive.Status = models.ProviderStatusInactive

	p, err := New(&fakeStore{providers: []*models.ProviderConfig{inactive}}, nil).SelectBest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSelectBest_StoreError(t *testing.T) {
	_, err := New(&fakeStore{err: errors.New("db down")}, nil).SelectBest(context.Background())
	assert.Error(t, err)
}

func TestCandidates_NeverIncludesLimitedNonFallback(t *testing.T) {
	limiter := setupTestLimiter(t)
	store := &fakeStore{providers: []*models.ProviderConfig{
		provider("groq", 1, 1, false),
		provider("openrouter", 2, 50, false),
		provider("together", 3, 50, false),
		provider("sambacloud", 4, 50, false),
	}}
	exhaust(t, limiter, "groq", 1)

	s := New(store, limiter)
	got, err := s.Candidates(context.Background(), 3)
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, p := range got {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"openrouter", "together", "sambacloud"}, names)

	best, err := s.SelectBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got[0].Name, best.Name)
}

func TestCandidates_FallbacksInPriorityOrder(t *testing.T) {
	limiter := setupTestLimiter(t)
	store := &fakeStore{providers: []*models.ProviderConfig{
		provider("groq", 1, 1, false),
		provider("ollama", 8, 1, true),
		provider("huggingface", 9, 1, true),
	}}
	for _, name := range []string{"groq", "ollama", "huggingface"} {
		exhaust(t, limiter, name, 1)
	}

	got, err := New(store, limiter).Candidates(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ollama", got[0].Name)
	assert.Equal(t, "huggingface", got[1].Name)
}

func TestCandidates_ZeroMax(t *testing.T) {
	store := &fakeStore{providers: []*models.ProviderConfig{provider("groq", 1, 30, false)}}
	got, err := New(store, nil).Candidates(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
