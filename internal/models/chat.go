package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "Active"
	SessionStatusClosed SessionStatus = "Closed"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatSession groups the messages of one conversation.
type ChatSession struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	UserRef   string        `db:"user_ref" json:"user_ref"`
	Language  string        `db:"language" json:"language"`
	Title     string        `db:"title" json:"title"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// ChatMessage is an append-only entry in a session transcript.
// Provider metadata is only set on assistant messages.
type ChatMessage struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	SessionID      uuid.UUID   `db:"session_id" json:"session_id"`
	Role           MessageRole `db:"role" json:"role"`
	Content        string      `db:"content" json:"content"`
	Language       string      `db:"language" json:"language"`
	Intent         *string     `db:"intent" json:"intent,omitempty"`
	Entities       JSONB       `db:"entities" json:"entities,omitempty"`
	ResponseTimeMS *int64      `db:"response_time_ms" json:"response_time_ms,omitempty"`
	Provider       *string     `db:"provider" json:"provider,omitempty"`
	Model          *string     `db:"model" json:"model,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}
