package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartai_gateway/internal/gateway"
	"smartai_gateway/internal/models"
)

func TestChat_Success(t *testing.T) {
	env := newTestEnv(t)
	env.chat.result = &gateway.Result{Success: true, Response: "Sales are up", Provider: "groq"}

	w := env.do(t, http.MethodPost, "/api/chat", map[string]string{
		"message":    "show sales",
		"session_id": uuid.NewString(),
		"language":   "Urdu",
	}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	var res gateway.Result
	decodeBody(t, w, &res)
	assert.True(t, res.Success)
	assert.Equal(t, "Sales are up", res.Response)
	assert.Equal(t, "Urdu", env.chat.lastReq.Language)
	assert.Equal(t, "show sales", env.chat.lastReq.Message)
}

func TestChat_ErrorCodesMapToStatus(t *testing.T) {
	tests := []struct {
		code gateway.ErrorCode
		want int
	}{
		{gateway.CodeInvalidInput, http.StatusBadRequest},
		{gateway.CodeSessionNotFound, http.StatusNotFound},
		{gateway.CodeNoProviderAvailable, http.StatusServiceUnavailable},
		{gateway.CodeAllProvidersFailed, http.StatusBadGateway},
		{gateway.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			env := newTestEnv(t)
			env.chat.result = &gateway.Result{
				Success:         false,
				Error:           "failed",
				ErrorCode:       tt.code,
				FallbackMessage: gateway.FallbackMessage,
			}

			w := env.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "session_id": "x"}, "")
			assert.Equal(t, tt.want, w.Code)

			var res gateway.Result
			decodeBody(t, w, &res)
			assert.Equal(t, tt.code, res.ErrorCode)
			assert.Equal(t, gateway.FallbackMessage, res.FallbackMessage)
		})
	}
}

func TestChat_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res gateway.Result
	decodeBody(t, w, &res)
	assert.False(t, res.Success)
	assert.Equal(t, gateway.CodeInvalidInput, res.ErrorCode)

	w = env.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hi", "bogus": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/sessions", map[string]string{"language": "Arabic"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var created CreateSessionResponse
	decodeBody(t, w, &created)
	assert.True(t, created.Success)
	assert.Equal(t, "Session created successfully", created.Message)

	id := uuid.MustParse(created.SessionID)
	env.chat.messages[id] = []*models.ChatMessage{
		{ID: uuid.New(), SessionID: id, Role: models.RoleUser, Content: "hello"},
		{ID: uuid.New(), SessionID: id, Role: models.RoleAssistant, Content: "hi"},
	}

	w = env.do(t, http.MethodGet, "/api/sessions/"+created.SessionID+"/messages?limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	decodeBody(t, w, &history)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hello", history.Messages[0].Content)

	w = env.do(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/close", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionStatusClosed, env.chat.sessions[id].Status)
}

func TestSessions_EmptyBodyUsesDefaults(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/sessions", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.chat.sessions, 1)
}

func TestSessions_ChunkedBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		language string
	}{
		{"empty", "", http.StatusOK, ""},
		{"with fields", `{"language":"Urdu"}`, http.StatusOK, "Urdu"},
		{"malformed", `{"language":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(tt.body))
			req.ContentLength = -1
			req.TransferEncoding = []string{"chunked"}
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				assert.Empty(t, env.chat.sessions)
				return
			}
			require.Len(t, env.chat.sessions, 1)
			for _, s := range env.chat.sessions {
				assert.Equal(t, tt.language, s.Language)
			}
		})
	}
}

func TestSessions_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/sessions/not-a-uuid/messages", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(gateway.CodeSessionNotFound))

	w = env.do(t, http.MethodGet, "/api/sessions/"+uuid.NewString()+"/messages", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/sessions/"+uuid.NewString()+"/close", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.chat.err = errors.New("db down")

	w := env.do(t, http.MethodPost, "/api/sessions", nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}
