package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/ratelimit"
	"smartai_gateway/internal/storage"
	"smartai_gateway/internal/utils"
)

// ProviderStore is implemented by storage.ProviderConfigRepository.
type ProviderStore interface {
	List(ctx context.Context) ([]*models.ProviderConfig, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error)
	GetByName(ctx context.Context, name string) (*models.ProviderConfig, error)
	Create(ctx context.Context, p *models.ProviderConfig) error
	Update(ctx context.Context, p *models.ProviderConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Encrypter seals provider API keys before they are stored.
type Encrypter interface {
	EncryptString(s string) (string, error)
}

// AdminProvidersHandler handles provider management endpoints
type AdminProvidersHandler struct {
	store      ProviderStore
	encryption Encrypter
	limiter    ratelimit.Limiter
	logger     *utils.Logger
}

// NewAdminProvidersHandler creates a new admin providers handler
func NewAdminProvidersHandler(store ProviderStore, encryption Encrypter, limiter ratelimit.Limiter) *AdminProvidersHandler {
	if limiter == nil {
		limiter = ratelimit.NewNoopLimiter()
	}
	return &AdminProvidersHandler{
		store:      store,
		encryption: encryption,
		limiter:    limiter,
		logger:     utils.NewLogger("admin-providers"),
	}
}

// CreateProviderRequest represents the request to create a new provider
type CreateProviderRequest struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"display_name"`
	APIEndpoint    string   `json:"api_endpoint"`
	ModelName      string   `json:"model_name"`
	APIKey         string   `json:"api_key"`
	RateLimit      int      `json:"rate_limit"`
	MaxTokens      int      `json:"max_tokens"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Priority       int      `json:"priority"`
	Status         string   `json:"status"`
	IsFallback     bool     `json:"is_fallback"`
	IsLocal        bool     `json:"is_local"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// UpdateProviderRequest represents the request to update a provider.
// Nil fields are left unchanged; an empty api_key clears the stored key.
type UpdateProviderRequest struct {
	DisplayName    *string  `json:"display_name,omitempty"`
	APIEndpoint    *string  `json:"api_endpoint,omitempty"`
	ModelName      *string  `json:"model_name,omitempty"`
	APIKey         *string  `json:"api_key,omitempty"`
	RateLimit      *int     `json:"rate_limit,omitempty"`
	MaxTokens      *int     `json:"max_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Priority       *int     `json:"priority,omitempty"`
	Status         *string  `json:"status,omitempty"`
	IsFallback     *bool    `json:"is_fallback,omitempty"`
	IsLocal        *bool    `json:"is_local,omitempty"`
	TimeoutSeconds *int     `json:"timeout_seconds,omitempty"`
}

// ProviderResponse represents a provider response (without the API key)
type ProviderResponse struct {
	*models.ProviderConfig
	AdapterFamily      catalog.Family `json:"family"`
	HasAPIKey          bool           `json:"has_api_key"`
	EffectiveRateLimit int            `json:"effective_rate_limit"`
	EffectiveMaxTokens int            `json:"effective_max_tokens"`
	ResolvedEndpoint   string         `json:"endpoint"`
	ResolvedModel      string         `json:"model"`
}

func newProviderResponse(p *models.ProviderConfig) ProviderResponse {
	return ProviderResponse{
		ProviderConfig:     p,
		AdapterFamily:      p.Family(),
		HasAPIKey:          p.EncryptedAPIKey != "",
		EffectiveRateLimit: p.EffectiveRateLimit(),
		EffectiveMaxTokens: p.EffectiveMaxTokens(),
		ResolvedEndpoint:   p.Endpoint(),
		ResolvedModel:      p.Model(),
	}
}

func validStatus(s string) bool {
	switch models.ProviderStatus(s) {
	case models.ProviderStatusActive, models.ProviderStatusInactive:
		return true
	default:
		return false
	}
}

// validateProvider checks a config about to be stored
func validateProvider(p *models.ProviderConfig) string {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return "Provider name is required"
	case p.Endpoint() == "":
		return "api_endpoint is required for providers outside the catalog"
	case p.EncryptedAPIKey == "" && !p.Local():
		return "api_key is required for remote providers"
	case p.RateLimit < 0 || p.MaxTokens < 0 || p.TimeoutSeconds < 0:
		return "rate_limit, max_tokens and timeout_seconds must not be negative"
	case p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2):
		return "temperature must be between 0 and 2"
	}
	return ""
}

func (h *AdminProvidersHandler) sealKey(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	return h.encryption.EncryptString(plain)
}

// Create handles POST /admin/providers - Create new provider
func (h *AdminProvidersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Status != "" && !validStatus(req.Status) {
		utils.RespondWithError(w, http.StatusBadRequest, "status must be Active or Inactive")
		return
	}

	encryptedKey, err := h.sealKey(req.APIKey)
	if err != nil {
		h.logger.Error("Failed to encrypt api key", "provider", req.Name, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to encrypt api key")
		return
	}

	provider := &models.ProviderConfig{
		Name:            strings.TrimSpace(req.Name),
		DisplayName:     req.DisplayName,
		APIEndpoint:     req.APIEndpoint,
		ModelName:       req.ModelName,
		EncryptedAPIKey: encryptedKey,
		RateLimit:       req.RateLimit,
		MaxTokens:       req.MaxTokens,
		Temperature:     req.Temperature,
		Priority:        req.Priority,
		Status:          models.ProviderStatus(req.Status),
		IsFallback:      req.IsFallback,
		IsLocal:         req.IsLocal,
		TimeoutSeconds:  req.TimeoutSeconds,
	}
	if provider.DisplayName == "" {
		if d, ok := provider.Descriptor(); ok {
			provider.DisplayName = d.Name
		}
	}

	if msg := validateProvider(provider); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Create(r.Context(), provider); err != nil {
		if errors.Is(err, storage.ErrDuplicateProvider) {
			utils.RespondWithError(w, http.StatusConflict, "Provider with this name already exists")
			return
		}
		h.logger.Error("Failed to create provider", "provider", provider.Name, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create provider")
		return
	}

	h.logger.Info("Provider created", "provider", provider.Name, "id", provider.ID)
	utils.RespondWithJSON(w, http.StatusCreated, newProviderResponse(provider))
}

// List handles GET /admin/providers - List all providers
func (h *AdminProvidersHandler) List(w http.ResponseWriter, r *http.Request) {
	providers, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list providers", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list providers")
		return
	}

	responses := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		responses = append(responses, newProviderResponse(p))
	}

	utils.RespondWithJSON(w, http.StatusOK, responses)
}

// load resolves the {id} path variable, writing the error response itself
func (h *AdminProvidersHandler) load(w http.ResponseWriter, r *http.Request) (*models.ProviderConfig, bool) {
	providerID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid provider ID format")
		return nil, false
	}

	provider, err := h.store.GetByID(r.Context(), providerID)
	if err != nil {
		if errors.Is(err, storage.ErrProviderNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Provider not found")
			return nil, false
		}
		h.logger.Error("Failed to get provider", "id", providerID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get provider")
		return nil, false
	}
	return provider, true
}

// GetByID handles GET /admin/providers/{id} - Get provider details
func (h *AdminProvidersHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.load(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newProviderResponse(provider))
}

// Update handles PUT /admin/providers/{id} - Update provider
func (h *AdminProvidersHandler) Update(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateProviderRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.DisplayName != nil {
		provider.DisplayName = *req.DisplayName
	}
	if req.APIEndpoint != nil {
		provider.APIEndpoint = *req.APIEndpoint
	}
	if req.ModelName != nil {
		provider.ModelName = *req.ModelName
	}
	if req.RateLimit != nil {
		provider.RateLimit = *req.RateLimit
	}
	if req.MaxTokens != nil {
		provider.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		provider.Temperature = req.Temperature
	}
	if req.Priority != nil {
		provider.Priority = *req.Priority
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			utils.RespondWithError(w, http.StatusBadRequest, "status must be Active or Inactive")
			return
		}
		provider.Status = models.ProviderStatus(*req.Status)
	}
	if req.IsFallback != nil {
		provider.IsFallback = *req.IsFallback
	}
	if req.IsLocal != nil {
		provider.IsLocal = *req.IsLocal
	}
	if req.TimeoutSeconds != nil {
		provider.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.APIKey != nil {
		sealed, err := h.sealKey(*req.APIKey)
		if err != nil {
			h.logger.Error("Failed to encrypt api key", "provider", provider.Name, "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to encrypt api key")
			return
		}
		provider.EncryptedAPIKey = sealed
	}

	if msg := validateProvider(provider); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Update(r.Context(), provider); err != nil {
		switch {
		case errors.Is(err, storage.ErrProviderNotFound):
			utils.RespondWithError(w, http.StatusNotFound, "Provider not found")
		case errors.Is(err, storage.ErrDuplicateProvider):
			utils.RespondWithError(w, http.StatusConflict, "Provider with this name already exists")
		default:
			h.logger.Error("Failed to update provider", "id", provider.ID, "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update provider")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, newProviderResponse(provider))
}

// Delete handles DELETE /admin/providers/{id}. By default the provider is
// set Inactive; ?hard=true removes the row.
func (h *AdminProvidersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.load(w, r)
	if !ok {
		return
	}

	hard, _ := strconv.ParseBool(r.URL.Query().Get("hard"))
	if hard {
		if err := h.store.Delete(r.Context(), provider.ID); err != nil && !errors.Is(err, storage.ErrProviderNotFound) {
			h.logger.Error("Failed to delete provider", "id", provider.ID, "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete provider")
			return
		}
		h.logger.Info("Provider deleted", "provider", provider.Name)
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{
			"message": "Provider deleted successfully",
		})
		return
	}

	provider.Status = models.ProviderStatusInactive
	if err := h.store.Update(r.Context(), provider); err != nil {
		h.logger.Error("Failed to disable provider", "id", provider.ID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to disable provider")
		return
	}

	h.logger.Info("Provider disabled", "provider", provider.Name)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Provider disabled successfully",
	})
}

// RateStatus handles GET /admin/providers/{name}/rate
func (h *AdminProvidersHandler) RateStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	provider, err := h.store.GetByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrProviderNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Provider not found")
			return
		}
		h.logger.Error("Failed to get provider", "provider", name, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get provider")
		return
	}

	status := h.limiter.CheckLimit(r.Context(), provider.Name, provider.EffectiveRateLimit())
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"provider": provider.Name,
		"status":   status,
	})
}

// ResetRate handles DELETE /admin/providers/{name}/rate
func (h *AdminProvidersHandler) ResetRate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.limiter.Reset(r.Context(), name); err != nil {
		h.logger.Error("Failed to reset rate counter", "provider", name, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to reset rate counter")
		return
	}
	h.logger.Info("Rate counter reset", "provider", name)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Rate counter reset",
	})
}
