package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartai_gateway/internal/models"
	"smartai_gateway/internal/storage"
)

var testSecret = []byte("test-secret-key-for-testing")

type mockAdminStore struct {
	users      map[string]*models.AdminUser
	err        error
	lastLogins []uuid.UUID
}

func (m *mockAdminStore) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, storage.ErrAdminUserNotFound
}

func (m *mockAdminStore) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	m.lastLogins = append(m.lastLogins, id)
	return nil
}

func newAdmin(t *testing.T, email, password string, roles ...string) *models.AdminUser {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &models.AdminUser{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Roles:        pq.StringArray(roles),
		Enabled:      true,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))
	assert.False(t, VerifyPassword("not-a-hash", "correct horse"))

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestJWT_RoundTrip(t *testing.T) {
	user := newAdmin(t, "ops@example.com", "password123", "admin")

	token, exp, err := GenerateAdminJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ValidateAdminJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.AdminID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, []string{"admin"}, claims.Roles)
}

func TestJWT_Rejects(t *testing.T) {
	user := newAdmin(t, "ops@example.com", "password123", "viewer")

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := GenerateAdminJWT(user, testSecret, time.Hour)
		require.NoError(t, err)
		_, err = ValidateAdminJWT(token, []byte("other-secret"))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, _, err := GenerateAdminJWT(user, testSecret, -time.Minute)
		require.NoError(t, err)
		_, err = ValidateAdminJWT(token, testSecret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{
			AdminID:          user.ID.String(),
			Roles:            []string{"admin"},
			RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ValidateAdminJWT(signed, testSecret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ValidateAdminJWT("not.a.token", testSecret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestService_Login(t *testing.T) {
	user := newAdmin(t, "ops@example.com", "password123", "admin")
	store := &mockAdminStore{users: map[string]*models.AdminUser{"ops@example.com": user}}
	svc := NewService(store, testSecret, time.Hour)

	res, err := svc.Login(context.Background(), " ops@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, []uuid.UUID{user.ID}, store.lastLogins)

	claims, err := svc.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.AdminID)
}

func TestService_LoginFailures(t *testing.T) {
	user := newAdmin(t, "ops@example.com", "password123", "admin")
	disabled := newAdmin(t, "old@example.com", "password123", "viewer")
	disabled.Enabled = false
	store := &mockAdminStore{users: map[string]*models.AdminUser{
		"ops@example.com": user,
		"old@example.com": disabled,
	}}
	svc := NewService(store, testSecret, time.Hour)
	ctx := context.Background()

	_, err := svc.Login(ctx, "ops@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "old@example.com", "password123")
	assert.ErrorIs(t, err, ErrAccountDisabled)

	store.err = errors.New("connection refused")
	_, err = svc.Login(ctx, "ops@example.com", "password123")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	assert.Empty(t, store.lastLogins)
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed([]string{"viewer"}))
	assert.True(t, Allowed([]string{"viewer"}, RoleViewer))
	assert.False(t, Allowed([]string{"viewer"}, RoleAdmin))
	assert.True(t, Allowed([]string{"admin"}, RoleViewer))
	assert.True(t, Allowed([]string{"admin"}, RoleAdmin))
	assert.False(t, Allowed(nil, RoleViewer))
	assert.False(t, Allowed([]string{"superuser"}, RoleViewer))
	assert.True(t, RoleAdmin.IsValid())
	assert.False(t, Role("owner").IsValid())
}
