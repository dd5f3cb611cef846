package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"smartai_gateway/internal/auth"
	"smartai_gateway/internal/middleware"
	"smartai_gateway/internal/ratelimit"
	"smartai_gateway/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker is implemented by storage.DB and storage.RedisClient.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Chat       ChatService
	Auth       Authenticator
	Providers  ProviderStore
	Encryption Encrypter
	RateLimit  ratelimit.Limiter
	Health     HealthSnapshot
	UsageStats UsageStatsSource
	Spending   SpendingSource
	UsageQueue DeadLetterSource

	// Infrastructure probes for /health. A nil Redis is reported as disabled.
	DB    HealthChecker
	Redis HealthChecker

	// Metrics serves /metrics when set
	Metrics http.Handler
}

// RouterOptions carries the HTTP-level settings
type RouterOptions struct {
	JWTSecret      []byte
	AllowedOrigins []string
}

// NewRouter creates an HTTP handler with all routes registered
func NewRouter(deps *Dependencies, opts RouterOptions) http.Handler {
	logger := utils.NewLogger("http")
	r := mux.NewRouter()
	r.Use(middleware.Recover(logger), middleware.AccessLog(logger))

	registerRoutes(r, deps, opts)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

func registerRoutes(r *mux.Router, deps *Dependencies, opts RouterOptions) {
	// Public chat API
	chat := NewChatHandler(deps.Chat)
	r.HandleFunc("/api/chat", chat.Chat).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions", chat.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/messages", chat.History).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/close", chat.CloseSession).Methods(http.MethodPost)

	r.HandleFunc("/health", deps.handleHealth).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}

	admin := NewAdminHandler(deps)
	r.HandleFunc("/admin/auth/login", admin.Login).Methods(http.MethodPost)

	viewer := r.PathPrefix("/admin").Subrouter()
	viewer.Use(middleware.AdminJWTMiddleware(opts.JWTSecret, auth.RoleViewer))
	operator := r.PathPrefix("/admin").Subrouter()
	operator.Use(middleware.AdminJWTMiddleware(opts.JWTSecret, auth.RoleAdmin))

	providers := NewAdminProvidersHandler(deps.Providers, deps.Encryption, deps.RateLimit)
	viewer.HandleFunc("/providers", providers.List).Methods(http.MethodGet)
	operator.HandleFunc("/providers", providers.Create).Methods(http.MethodPost)
	viewer.HandleFunc("/providers/{id}", providers.GetByID).Methods(http.MethodGet)
	operator.HandleFunc("/providers/{id}", providers.Update).Methods(http.MethodPut)
	operator.HandleFunc("/providers/{id}", providers.Delete).Methods(http.MethodDelete)
	viewer.HandleFunc("/providers/{name}/rate", providers.RateStatus).Methods(http.MethodGet)
	operator.HandleFunc("/providers/{name}/rate", providers.ResetRate).Methods(http.MethodDelete)

	viewer.HandleFunc("/catalog", admin.Catalog).Methods(http.MethodGet)
	viewer.HandleFunc("/health", admin.ProviderHealth).Methods(http.MethodGet)
	viewer.HandleFunc("/usage", admin.Usage).Methods(http.MethodGet)
	viewer.HandleFunc("/usage/dlq", admin.DeadLetters).Methods(http.MethodGet)
	operator.HandleFunc("/usage/dlq/{id}/retry", admin.RetryDeadLetter).Methods(http.MethodPost)
}

// handleHealth reports database and Redis reachability
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"database": probe(ctx, d.DB),
		"redis":    probe(ctx, d.Redis),
	}

	status, code := "ok", http.StatusOK
	for _, v := range checks {
		if v != "ok" && v != "disabled" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	utils.RespondWithJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func probe(ctx context.Context, c HealthChecker) string {
	if c == nil {
		return "disabled"
	}
	if err := c.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
