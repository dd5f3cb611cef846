package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartai_gateway/internal/models"
)

func TestCreateSession_Defaults(t *testing.T) {
	h := newHarness(t)
	h.orch.now = func() time.Time { return time.Date(2024, 3, 13, 9, 5, 0, 0, time.UTC) }

	s, err := h.orch.CreateSession(context.Background(), "", "", "erp-user@example.com")
	require.NoError(t, err)

	assert.Equal(t, "Chat - 2024-03-13 09:05", s.Title)
	assert.Equal(t, "English", s.Language)
	assert.Equal(t, models.SessionStatusActive, s.Status)
	assert.Equal(t, "erp-user@example.com", s.UserRef)
	assert.Contains(t, h.sessions.sessions, s.ID)
}

func TestCreateSession_KeepsGivenValues(t *testing.T) {
	h := newHarness(t)

	s, err := h.orch.CreateSession(context.Background(), "Urdu", "Quarterly review", "")
	require.NoError(t, err)
	assert.Equal(t, "Urdu", s.Language)
	assert.Equal(t, "Quarterly review", s.Title)
}

func TestCreateSession_NormalizesLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Arabic", "Arabic"},
		{"urdu", "Urdu"},
		{"  ARABIC ", "Arabic"},
		{"Klingon", "English"},
		{"", "English"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h := newHarness(t)
			s, err := h.orch.CreateSession(context.Background(), tt.in, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Language)
		})
	}
}

func TestCreateSession_StoreError(t *testing.T) {
	h := newHarness(t)
	h.sessions.createErr = errors.New("disk full")

	_, err := h.orch.CreateSession(context.Background(), "English", "", "")
	assert.ErrorContains(t, err, "disk full")
}

func TestHistory(t *testing.T) {
	up := okUpstream(t, "answer")
	h := newHarness(t, providerFor("groq", up.URL, 1))
	require.True(t, h.chat("hello").Success)

	msgs, err := h.orch.History(context.Background(), h.sessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "answer", msgs[1].Content)

	_, err = h.orch.History(context.Background(), uuid.New(), 10)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCloseAndCleanupSessions(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	h.orch.now = func() time.Time { return now }

	require.NoError(t, h.orch.CloseSession(context.Background(), h.sessionID))
	assert.ErrorIs(t, h.orch.CloseSession(context.Background(), uuid.New()), ErrSessionNotFound)

	n, err := h.orch.CleanupSessions(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, now.Add(-30*24*time.Hour), h.sessions.cutoff)

	// a closed and purged session can no longer be chatted in
	res := h.chat("hello")
	assert.Equal(t, CodeSessionNotFound, res.ErrorCode)
}
