package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"smartai_gateway/internal/auth"
	"smartai_gateway/internal/gateway"
	"smartai_gateway/internal/health"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/queue"
	"smartai_gateway/internal/ratelimit"
	"smartai_gateway/internal/storage"
)

var testJWTSecret = []byte("httpapi-test-secret")

type fakeChat struct {
	result   *gateway.Result
	lastReq  gateway.ChatRequest
	sessions map[uuid.UUID]*models.ChatSession
	messages map[uuid.UUID][]*models.ChatMessage
	err      error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		sessions: make(map[uuid.UUID]*models.ChatSession),
		messages: make(map[uuid.UUID][]*models.ChatMessage),
	}
}

func (f *fakeChat) Chat(ctx context.Context, req gateway.ChatRequest) *gateway.Result {
	f.lastReq = req
	return f.result
}

func (f *fakeChat) CreateSession(ctx context.Context, language, title, userRef string) (*models.ChatSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &models.ChatSession{ID: uuid.New(), Language: language, Title: title, UserRef: userRef, Status: models.SessionStatusActive}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeChat) History(ctx context.Context, id uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.sessions[id]; !ok {
		return nil, gateway.ErrSessionNotFound
	}
	msgs := f.messages[id]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeChat) CloseSession(ctx context.Context, id uuid.UUID) error {
	s, ok := f.sessions[id]
	if !ok {
		return gateway.ErrSessionNotFound
	}
	s.Status = models.SessionStatusClosed
	return nil
}

type memoryProviderStore struct {
	mu        sync.Mutex
	providers map[uuid.UUID]*models.ProviderConfig
	failList  bool
}

func newMemoryProviderStore() *memoryProviderStore {
	return &memoryProviderStore{providers: make(map[uuid.UUID]*models.ProviderConfig)}
}

func (m *memoryProviderStore) List(ctx context.Context) ([]*models.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errors.New("db down")
	}
	out := make([]*models.ProviderConfig, 0, len(m.providers))
	for _, p := range m.providers {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryProviderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, storage.ErrProviderNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryProviderStore) GetByName(ctx context.Context, name string) (*models.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storage.ErrProviderNotFound
}

func (m *memoryProviderStore) Create(ctx context.Context, p *models.ProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.providers {
		if existing.Name == p.Name {
			return storage.ErrDuplicateProvider
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ProviderStatusActive
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.providers[p.ID] = &cp
	return nil
}

func (m *memoryProviderStore) Update(ctx context.Context, p *models.ProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[p.ID]; !ok {
		return storage.ErrProviderNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.providers[p.ID] = &cp
	return nil
}

func (m *memoryProviderStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[id]; !ok {
		return storage.ErrProviderNotFound
	}
	delete(m.providers, id)
	return nil
}

type fakeAuth struct {
	result *auth.LoginResult
	err    error
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	return f.result, f.err
}

type fakeStats struct {
	stats []models.UsageStats
	since time.Time
	err   error
}

func (f *fakeStats) StatsByProvider(ctx context.Context, since time.Time) ([]models.UsageStats, error) {
	f.since = since
	return f.stats, f.err
}

type fakeSpending map[string]float64

func (f fakeSpending) AllMonthlySpending(ctx context.Context) (map[string]float64, error) {
	return f, nil
}

type fakeDLQ struct {
	items   []queue.DeadLetterItem
	retried []string
}

func (f *fakeDLQ) QueueLength(ctx context.Context) (int, error) {
	return 7, nil
}

func (f *fakeDLQ) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if maxItems < len(f.items) {
		return f.items[:maxItems], nil
	}
	return f.items, nil
}

func (f *fakeDLQ) RetryDeadLetterItem(ctx context.Context, id string) error {
	for _, it := range f.items {
		if it.ID == id {
			f.retried = append(f.retried, id)
			return nil
		}
	}
	return queue.ErrItemNotFound
}

type staticHealth struct{ err error }

func (s staticHealth) Health(ctx context.Context) error { return s.err }

type testEnv struct {
	handler   http.Handler
	chat      *fakeChat
	providers *memoryProviderStore
	limiter   *ratelimit.RedisLimiter
	health    *health.Tracker
	stats     *fakeStats
	dlq       *fakeDLQ
	auth      *fakeAuth
	enc       *storage.Encryption
	deps      *Dependencies
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	enc, err := storage.NewEncryption(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	env := &testEnv{
		chat:      newFakeChat(),
		providers: newMemoryProviderStore(),
		limiter:   ratelimit.NewRedisLimiter(client, ""),
		health:    health.NewTracker(health.DefaultConfig()),
		stats:     &fakeStats{},
		dlq:       &fakeDLQ{},
		auth:      &fakeAuth{},
		enc:       enc,
	}
	env.deps = &Dependencies{
		Chat:       env.chat,
		Auth:       env.auth,
		Providers:  env.providers,
		Encryption: enc,
		RateLimit:  env.limiter,
		Health:     env.health,
		UsageStats: env.stats,
		Spending:   fakeSpending{"groq": 0.25, "anthropic_claude": 1.5},
		UsageQueue: env.dlq,
		DB:         staticHealth{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
	}
	env.handler = NewRouter(env.deps, RouterOptions{
		JWTSecret:      testJWTSecret,
		AllowedOrigins: []string{"https://erp.example.com"},
	})
	return env
}

func adminToken(t *testing.T, roles ...string) string {
	t.Helper()
	user := &models.AdminUser{ID: uuid.New(), Email: "ops@example.com", Roles: pq.StringArray(roles), Enabled: true}
	token, _, err := auth.GenerateAdminJWT(user, testJWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
