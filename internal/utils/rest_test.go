package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
	}{
		{name: "bad request", code: http.StatusBadRequest, message: "Invalid input"},
		{name: "not found", code: http.StatusNotFound, message: "Session not found"},
		{name: "bad gateway", code: http.StatusBadGateway, message: "Provider failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithError(w, tt.code, tt.message)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.message, response.Error)
			assert.Empty(t, response.Code)
		})
	}
}

func TestRespondWithErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithErrorCode(w, http.StatusServiceUnavailable, "no_provider_available", "configure a provider")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "no_provider_available", response.Code)
	assert.Equal(t, "configure a provider", response.Error)
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()

	payload := map[string]any{
		"success": true,
		"count":   42,
	}

	require.NoError(t, RespondWithJSON(w, http.StatusCreated, payload))
	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, true, response["success"])
	assert.Equal(t, float64(42), response["count"])
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Message string `json:"message"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hi"}`))
		var b body
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &b))
		assert.Equal(t, "hi", b.Message)
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var b body
		err := DecodeJSON(httptest.NewRecorder(), r, &b)
		assert.ErrorIs(t, err, ErrEmptyBody)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"msg":"hi"}`))
		var b body
		assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &b))
	})

	t.Run("trailing document", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"a"}{"message":"b"}`))
		var b body
		assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &b))
	})
}
