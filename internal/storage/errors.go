package storage

import "errors"

var (
	// ErrProviderNotFound is returned when a provider config is not found
	ErrProviderNotFound = errors.New("provider not found")

	// ErrDuplicateProvider is returned when a provider name is already taken
	ErrDuplicateProvider = errors.New("provider name already exists")

	// ErrSessionNotFound is returned when a chat session is not found
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrAdminUserNotFound is returned when an admin user is not found
	ErrAdminUserNotFound = errors.New("admin user not found")
)
