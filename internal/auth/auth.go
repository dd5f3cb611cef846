package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartai_gateway/internal/models"
	"smartai_gateway/internal/storage"
	"smartai_gateway/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// AdminStore is implemented by storage.AdminUserRepository.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      *models.AdminUser `json:"user"`
}

// Service exchanges admin credentials for a JWT.
type Service struct {
	store  AdminStore
	secret []byte
	ttl    time.Duration
	logger *utils.Logger
}

func NewService(store AdminStore, secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		store:  store,
		secret: secret,
		ttl:    ttl,
		logger: utils.NewLogger("auth"),
	}
}

// Login verifies email and password. Unknown users and wrong passwords
// produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrAdminUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load admin user: %w", err)
	}

	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	if !user.CanLogin() || !VerifyPassword(user.PasswordHash, password) {
		s.logger.Warn("Failed admin login", "user", utils.Fingerprint(email))
		return nil, ErrInvalidCredentials
	}

	token, exp, err := GenerateAdminJWT(user, s.secret, s.ttl)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to update last login", "admin_id", user.ID, "error", err)
	}

	return &LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

// Validate checks a bearer token issued by Login.
func (s *Service) Validate(token string) (*AdminClaims, error) {
	return ValidateAdminJWT(token, s.secret)
}
