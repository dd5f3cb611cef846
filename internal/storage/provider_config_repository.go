package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"smartai_gateway/internal/models"
)

const providerConfigColumns = `id, name, display_name, api_endpoint, model_name, encrypted_api_key,
		       rate_limit, max_tokens, temperature, priority, status, is_fallback,
		       is_local, timeout_seconds, created_at, updated_at`

// ProviderConfigRepository handles provider config database operations
type ProviderConfigRepository struct {
	db *DB
}

func NewProviderConfigRepository(db *DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

// ListActive returns Active providers in selection order. Ties on priority
// are broken by creation time and then id so the order is total.
func (r *ProviderConfigRepository) ListActive(ctx context.Context) ([]*models.ProviderConfig, error) {
	query := `
		SELECT ` + providerConfigColumns + `
		FROM provider_configs
		WHERE status = 'Active'
		ORDER BY priority, created_at, id
	`

	var providers []*models.ProviderConfig
	if err := r.db.conn.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("failed to list active providers: %w", err)
	}

	return providers, nil
}

// ListFallback returns Active providers flagged as last resort, in selection order
func (r *ProviderConfigRepository) ListFallback(ctx context.Context) ([]*models.ProviderConfig, error) {
	query := `
		SELECT ` + providerConfigColumns + `
		FROM provider_configs
		WHERE status = 'Active' AND is_fallback = TRUE
		ORDER BY priority, created_at, id
	`

	var providers []*models.ProviderConfig
	if err := r.db.conn.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("failed to list fallback providers: %w", err)
	}

	return providers, nil
}

// List returns every provider config regardless of status
func (r *ProviderConfigRepository) List(ctx context.Context) ([]*models.ProviderConfig, error) {
	query := `
		SELECT ` + providerConfigColumns + `
		FROM provider_configs
		ORDER BY priority, created_at, id
	`

	var providers []*models.ProviderConfig
	if err := r.db.conn.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	return providers, nil
}

func (r *ProviderConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error) {
	query := `
		SELECT ` + providerConfigColumns + `
		FROM provider_configs
		WHERE id = $1
	`
	return r.get(ctx, query, id)
}

func (r *ProviderConfigRepository) GetByName(ctx context.Context, name string) (*models.ProviderConfig, error) {
	query := `
		SELECT ` + providerConfigColumns + `
		FROM provider_configs
		WHERE name = $1
	`
	return r.get(ctx, query, name)
}

func (r *ProviderConfigRepository) get(ctx context.Context, query string, arg any) (*models.ProviderConfig, error) {
	var provider models.ProviderConfig
	err := r.db.conn.GetContext(ctx, &provider, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &provider, nil
}

// Create inserts a provider config. An empty status defaults to Active.
func (r *ProviderConfigRepository) Create(ctx context.Context, p *models.ProviderConfig) error {
	query := `
		INSERT INTO provider_configs (id, name, display_name, api_endpoint, model_name,
		                              encrypted_api_key, rate_limit, max_tokens, temperature,
		                              priority, status, is_fallback, is_local, timeout_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ProviderStatusActive
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		p.ID, p.Name, p.DisplayName, p.APIEndpoint, p.ModelName,
		p.EncryptedAPIKey, p.RateLimit, p.MaxTokens, p.Temperature,
		p.Priority, p.Status, p.IsFallback, p.IsLocal, p.TimeoutSeconds,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateProvider
		}
		return fmt.Errorf("failed to create provider: %w", err)
	}

	return nil
}

func (r *ProviderConfigRepository) Update(ctx context.Context, p *models.ProviderConfig) error {
	query := `
		UPDATE provider_configs
		SET name = $2, display_name = $3, api_endpoint = $4, model_name = $5,
		    encrypted_api_key = $6, rate_limit = $7, max_tokens = $8, temperature = $9,
		    priority = $10, status = $11, is_fallback = $12, is_local = $13,
		    timeout_seconds = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		p.ID, p.Name, p.DisplayName, p.APIEndpoint, p.ModelName,
		p.EncryptedAPIKey, p.RateLimit, p.MaxTokens, p.Temperature,
		p.Priority, p.Status, p.IsFallback, p.IsLocal, p.TimeoutSeconds,
	).Scan(&p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProviderNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicateProvider
		}
		return fmt.Errorf("failed to update provider: %w", err)
	}

	return nil
}

func (r *ProviderConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM provider_configs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return ErrProviderNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
