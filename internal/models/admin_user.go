package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AdminUser is an operator account for the admin API.
// Passwords are stored as bcrypt hashes.
type AdminUser struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Roles        pq.StringArray `db:"roles" json:"roles"` // "admin", "viewer"
	Enabled      bool           `db:"enabled" json:"enabled"`
	LastLoginAt  *time.Time     `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

func (u *AdminUser) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u *AdminUser) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// CanLogin reports whether the account may authenticate.
func (u *AdminUser) CanLogin() bool {
	return u.Enabled && u.PasswordHash != ""
}
