package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"smartai_gateway/internal/auth"
	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/health"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/queue"
	"smartai_gateway/internal/utils"
)

const defaultDLQLimit = 100

// Authenticator is implemented by auth.Service.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// HealthSnapshot is implemented by health.Tracker.
type HealthSnapshot interface {
	All() []health.Stats
}

// UsageStatsSource is implemented by storage.UsageLogRepository.
type UsageStatsSource interface {
	StatsByProvider(ctx context.Context, since time.Time) ([]models.UsageStats, error)
}

// SpendingSource is implemented by usage.Tracker.
type SpendingSource interface {
	AllMonthlySpending(ctx context.Context) (map[string]float64, error)
}

// DeadLetterSource is implemented by storage.UsageLogWorker.
type DeadLetterSource interface {
	QueueLength(ctx context.Context) (int, error)
	DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error)
	RetryDeadLetterItem(ctx context.Context, id string) error
}

// AdminHandler serves login and the read-only operational endpoints
type AdminHandler struct {
	auth     Authenticator
	health   HealthSnapshot
	stats    UsageStatsSource
	spending SpendingSource
	usageDLQ DeadLetterSource
	now      func() time.Time
	logger   *utils.Logger
}

func NewAdminHandler(deps *Dependencies) *AdminHandler {
	return &AdminHandler{
		auth:     deps.Auth,
		health:   deps.Health,
		stats:    deps.UsageStats,
		spending: deps.Spending,
		usageDLQ: deps.UsageQueue,
		now:      time.Now,
		logger:   utils.NewLogger("admin-api"),
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /admin/auth/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, auth.ErrAccountDisabled):
			utils.RespondWithError(w, http.StatusForbidden, "Account is disabled")
		default:
			h.logger.Error("Login failed", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, res)
}

// Catalog handles GET /admin/catalog
func (h *AdminHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, catalog.All())
}

// ProviderHealth handles GET /admin/health
func (h *AdminHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.health.All()
	sort.Slice(stats, func(i, j int) bool { return stats[i].Provider < stats[j].Provider })
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

// UsageEntry is one provider row of the usage report
type UsageEntry struct {
	models.UsageStats
	SuccessRate    float64 `json:"success_rate"`
	MonthlyCostUSD float64 `json:"monthly_cost_usd"`
}

// parseSince accepts RFC3339, a YYYY-MM-DD date or a Go duration meaning
// "this long ago". Empty means the start of the current UTC month.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		now = now.UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return time.Time{}, errors.New("since must be RFC3339, YYYY-MM-DD or a positive duration")
	}
	return now.Add(-d), nil
}

// Usage handles GET /admin/usage?since=
func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r.URL.Query().Get("since"), h.now())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.stats.StatsByProvider(r.Context(), since)
	if err != nil {
		h.logger.Error("Failed to load usage stats", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load usage stats")
		return
	}

	spending, err := h.spending.AllMonthlySpending(r.Context())
	if err != nil {
		h.logger.Warn("Failed to load monthly spending", "error", err)
		spending = map[string]float64{}
	}

	entries := make([]UsageEntry, 0, len(stats))
	var total float64
	for _, s := range stats {
		entries = append(entries, UsageEntry{
			UsageStats:     s,
			SuccessRate:    s.SuccessRate(),
			MonthlyCostUSD: spending[s.Provider],
		})
	}
	for _, cost := range spending {
		total += cost
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"since":            since,
		"providers":        entries,
		"monthly_cost":     spending,
		"monthly_cost_usd": total,
	})
}

// DeadLetters handles GET /admin/usage/dlq?limit=N
func (h *AdminHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultDLQLimit
	}

	items, err := h.usageDLQ.DeadLetterItems(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list dead letters", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list dead letters")
		return
	}
	pending, err := h.usageDLQ.QueueLength(r.Context())
	if err != nil {
		pending = -1
	}
	if items == nil {
		items = []queue.DeadLetterItem{}
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"items":         items,
		"queue_pending": pending,
	})
}

// RetryDeadLetter handles POST /admin/usage/dlq/{id}/retry
func (h *AdminHandler) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.usageDLQ.RetryDeadLetterItem(r.Context(), id); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Dead letter item not found")
			return
		}
		h.logger.Error("Failed to retry dead letter", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to retry dead letter")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Item re-enqueued"})
}
