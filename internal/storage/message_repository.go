package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartai_gateway/internal/models"
)

// MessageRepository handles chat message database operations
type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts m. A zero CreatedAt is stamped with the current time so
// callers can order a user turn ahead of its reply explicitly.
func (r *MessageRepository) Create(ctx context.Context, m *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, session_id, role, content, language, intent,
		                           entities, response_time_ms, provider, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err := r.db.conn.ExecContext(
		ctx, query,
		m.ID, m.SessionID, m.Role, m.Content, m.Language, m.Intent,
		m.Entities, m.ResponseTimeMS, m.Provider, m.Model, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ListBySession returns the latest limit messages in chronological order.
// A limit <= 0 returns the whole transcript.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	query := `
		SELECT * FROM (
			SELECT id, session_id, role, content, language, intent, entities,
			       response_time_ms, provider, model, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id
	`

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	messages := []*models.ChatMessage{}
	if err := r.db.conn.SelectContext(ctx, &messages, query, sessionID, limitArg); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}
