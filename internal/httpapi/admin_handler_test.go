package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartai_gateway/internal/auth"
	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/health"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/queue"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	env.auth.result = &auth.LoginResult{Token: "signed", ExpiresAt: time.Now().Add(time.Hour)}
	w := env.do(t, http.MethodPost, "/admin/auth/login", LoginRequest{Email: "ops@example.com", Password: "pw"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "signed")

	env.auth.err = auth.ErrInvalidCredentials
	w = env.do(t, http.MethodPost, "/admin/auth/login", LoginRequest{Email: "ops@example.com", Password: "bad"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.auth.err = auth.ErrAccountDisabled
	w = env.do(t, http.MethodPost, "/admin/auth/login", LoginRequest{Email: "old@example.com", Password: "pw"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.auth.err = errors.New("db down")
	w = env.do(t, http.MethodPost, "/admin/auth/login", LoginRequest{Email: "ops@example.com", Password: "pw"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCatalogEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/admin/catalog", nil, adminToken(t, "viewer"))
	require.Equal(t, http.StatusOK, w.Code)

	var entries []catalog.Descriptor
	decodeBody(t, w, &entries)
	assert.Len(t, entries, len(catalog.Keys()))
}

func TestProviderHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.health.RecordSuccess("groq")
	env.health.RecordFailure("anthropic_claude", errors.New("boom"))

	w := env.do(t, http.MethodGet, "/admin/health", nil, adminToken(t, "viewer"))
	require.Equal(t, http.StatusOK, w.Code)

	var stats []health.Stats
	decodeBody(t, w, &stats)
	require.Len(t, stats, 2)
	assert.Equal(t, "anthropic_claude", stats[0].Provider)
	assert.Equal(t, "groq", stats[1].Provider)
}

func TestUsageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.stats.stats = []models.UsageStats{
		{Provider: "groq", Requests: 4, Successes: 3, AvgResponseTimeMS: 120},
	}
	viewer := adminToken(t, "viewer")

	w := env.do(t, http.MethodGet, "/admin/usage?since=2024-05-01", nil, viewer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), env.stats.since)

	var body struct {
		Providers      []UsageEntry `json:"providers"`
		MonthlyCostUSD float64      `json:"monthly_cost_usd"`
	}
	decodeBody(t, w, &body)
	require.Len(t, body.Providers, 1)
	assert.InDelta(t, 0.75, body.Providers[0].SuccessRate, 1e-9)
	assert.InDelta(t, 0.25, body.Providers[0].MonthlyCostUSD, 1e-9)
	assert.InDelta(t, 1.75, body.MonthlyCostUSD, 1e-9)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/admin/usage?since=yesterday", nil, viewer).Code)

	env.stats.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, env.do(t, http.MethodGet, "/admin/usage", nil, viewer).Code)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

	got, err := parseSince("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSince("24h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), got)

	got, err = parseSince("2024-05-10T08:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC), got)

	_, err = parseSince("-1h", now)
	assert.Error(t, err)
}

func TestDeadLetterEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.dlq.items = []queue.DeadLetterItem{
		{ID: "a", Error: "insert failed"},
		{ID: "b", Error: "insert failed"},
	}

	w := env.do(t, http.MethodGet, "/admin/usage/dlq?limit=1", nil, adminToken(t, "viewer"))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items        []queue.DeadLetterItem `json:"items"`
		QueuePending int                    `json:"queue_pending"`
	}
	decodeBody(t, w, &body)
	assert.Len(t, body.Items, 1)
	assert.Equal(t, 7, body.QueuePending)

	admin := adminToken(t, "admin")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/admin/usage/dlq/b/retry", nil, admin).Code)
	assert.Equal(t, []string{"b"}, env.dlq.retried)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/admin/usage/dlq/zzz/retry", nil, admin).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "disabled", body.Checks["redis"])

	env.deps.Redis = staticHealth{err: errors.New("connection refused")}
	w = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://erp.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, "https://erp.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
