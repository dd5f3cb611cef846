package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartai_gateway/internal/models"
	"smartai_gateway/internal/prompt"
	"smartai_gateway/internal/storage"
)

const defaultHistoryLimit = 50

// CreateSession opens a new Active session. An empty title becomes
// "Chat - YYYY-MM-DD HH:MM".
func (o *Orchestrator) CreateSession(ctx context.Context, language, title, userRef string) (*models.ChatSession, error) {
	now := o.now()
	language = o.sessionLanguage(language)
	if title == "" {
		title = "Chat - " + now.Format("2006-01-02 15:04")
	}

	session := &models.ChatSession{
		ID:        uuid.New(),
		UserRef:   userRef,
		Language:  language,
		Title:     title,
		Status:    models.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.deps.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	o.logger.Info("Session created", "session_id", session.ID, "language", language)
	return session, nil
}

// sessionLanguage maps language onto a prompt language, ignoring case.
// Anything else becomes the default language.
func (o *Orchestrator) sessionLanguage(language string) string {
	if prompt.Supported(language) {
		return language
	}
	language = strings.TrimSpace(language)
	for _, l := range prompt.Languages() {
		if strings.EqualFold(l, language) {
			return l
		}
	}
	if language != "" {
		o.logger.Debug("Unsupported session language, using default", "language", language)
	}
	return o.opts.DefaultLanguage
}

// History returns up to limit messages of a session in creation order.
func (o *Orchestrator) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	exists, err := o.deps.Sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	msgs, err := o.deps.Messages.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (o *Orchestrator) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := o.deps.Sessions.Close(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// CleanupSessions purges Closed sessions untouched for longer than retention.
func (o *Orchestrator) CleanupSessions(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := o.deps.Sessions.DeleteClosedBefore(ctx, o.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.logger.Info("Purged closed sessions", "count", n, "retention", retention)
	}
	return n, nil
}
