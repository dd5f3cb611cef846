package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartai_gateway/internal/models"
)

// SessionRepository handles chat session database operations
type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (id, user_ref, language, title, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.SessionStatusActive
	}

	err := r.db.conn.QueryRowxContext(ctx, query, s.ID, s.UserRef, s.Language, s.Title, s.Status).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.db.sessionCache.Set(s.ID.String(), true)
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var s models.ChatSession
	query := `
		SELECT id, user_ref, language, title, status, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`

	err := r.db.conn.GetContext(ctx, &s, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}

// Exists reports whether a session row exists, whatever its status.
// Positive answers are cached; negative answers always hit the database.
func (r *SessionRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	key := id.String()
	if _, ok := r.db.sessionCache.Get(key); ok {
		return true, nil
	}

	var exists bool
	err := r.db.conn.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM chat_sessions WHERE id = $1)", id)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}

	if exists {
		r.db.sessionCache.Set(key, true)
	}
	return exists, nil
}

func (r *SessionRepository) Close(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE chat_sessions
		SET status = 'Closed', updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteClosedBefore purges Closed sessions last touched before cutoff.
// Messages go with them through ON DELETE CASCADE.
func (r *SessionRepository) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM chat_sessions
		WHERE status = 'Closed' AND updated_at < $1
	`

	result, err := r.db.conn.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete closed sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		r.db.sessionCache.Clear()
	}
	return rows, nil
}
