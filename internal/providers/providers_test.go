package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartai_gateway/internal/catalog"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/utils"
)

// captured holds what a stub server saw of the last request.
type captured struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

func stubServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Path = r.URL.EscapedPath()
		c.Header = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &c.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func testRequest() CanonicalRequest {
	return CanonicalRequest{
		SystemPrompt: "You are helpful.",
		UserMessage:  "show me last month sales",
		Model:        "test-model",
		MaxTokens:    512,
		Temperature:  0.2,
	}
}

func TestOpenAIAdapter_RoundTrip(t *testing.T) {
	srv, got := stubServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Sales were up."}}]}`)
	cfg := &models.ProviderConfig{Name: "groq", APIEndpoint: srv.URL + "/v1/chat/completions"}

	text, err := NewOpenAIAdapter(Options{}).Call(context.Background(), cfg, "sk-test", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Sales were up.", text)

	assert.Equal(t, "/v1/chat/completions", got.Path)
	assert.Equal(t, "Bearer sk-test", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "test-model", got.Body["model"])
	assert.EqualValues(t, 512, got.Body["max_tokens"])
	assert.InDelta(t, 0.2, got.Body["temperature"], 1e-9)

	msgs := got.Body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "show me last month sales", msgs[1].(map[string]any)["content"])
}

func TestOpenRouterAdapter_SendsSiteHeaders(t *testing.T) {
	srv, got := stubServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	cfg := &models.ProviderConfig{Name: "openrouter", APIEndpoint: srv.URL}

	text, err := NewOpenRouterAdapter(Options{SiteURL: "https://erp.example.com"}).Call(context.Background(), cfg, "or-key", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "https://erp.example.com", got.Header.Get("HTTP-Referer"))
	assert.Equal(t, "SmartAI Chatbot", got.Header.Get("X-Title"))
	assert.Equal(t, "Bearer or-key", got.Header.Get("Authorization"))
}

func TestGeminiAdapter_RoundTrip(t *testing.T) {
	srv, got := stubServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"Gemini says hi"}]}}]}`)
	cfg := &models.ProviderConfig{Name: "google_gemini", APIEndpoint: srv.URL + "/v1beta/models/{model}:generateContent"}
	req := testRequest()
	req.Model = "tuned/flash"

	text, err := NewGeminiAdapter(Options{}).Call(context.Background(), cfg, "g-key", req)
	require.NoError(t, err)
	assert.Equal(t, "Gemini says hi", text)

	assert.Equal(t, "/v1beta/models/tuned%2Fflash:generateContent", got.Path)
	assert.Equal(t, "g-key", got.Header.Get("x-goog-api-key"))
	assert.Empty(t, got.Header.Get("Authorization"))

	contents := got.Body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "You are helpful.\n\nUser: show me last month sales", parts[0].(map[string]any)["text"])
	gen := got.Body["generationConfig"].(map[string]any)
	assert.EqualValues(t, 512, gen["maxOutputTokens"])
}

func TestAnthropicAdapter_RoundTrip(t *testing.T) {
	srv, got := stubServer(t, http.StatusOK, `{"content":[{"type":"text","text":"Claude reply"}]}`)
	cfg := &models.ProviderConfig{Name: "anthropic_claude", APIEndpoint: srv.URL}

	text, err := NewAnthropicAdapter(Options{}).Call(context.Background(), cfg, "ant-key", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Claude reply", text)

	assert.Equal(t, "ant-key", got.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", got.Header.Get("anthropic-version"))
	assert.Equal(t, "You are helpful.", got.Body["system"])
	msgs := got.Body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestHuggingFaceAdapter_RoundTrip(t *testing.T) {
	srv, got := stubServer(t, http.StatusOK, `[{"generated_text":"HF reply"}]`)
	cfg := &models.ProviderConfig{Name: "huggingface", APIEndpoint: srv.URL}

	text, err := NewHuggingFaceAdapter(Options{}).Call(context.Background(), cfg, "hf-key", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "HF reply", text)

	assert.Equal(t, "Bearer hf-key", got.Header.Get("Authorization"))
	assert.Equal(t, "You are helpful.\n\nUser: show me last month sales", got.Body["inputs"])
	params := got.Body["parameters"].(map[string]any)
	assert.EqualValues(t, 512, params["max_new_tokens"])
	assert.Equal(t, false, params["return_full_text"])
}

func TestOllamaAdapter_RoundTrip(t *testing.T) {
	srv, got := stubServer(t, http.StatusOK, `{"message":{"role":"assistant","content":"local reply"}}`)
	cfg := &models.ProviderConfig{Name: "ollama", APIEndpoint: srv.URL + "/api/"}

	text, err := NewOllamaAdapter(Options{}).Call(context.Background(), cfg, "", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "local reply", text)

	assert.Equal(t, "/api/chat", got.Path)
	assert.Empty(t, got.Header.Get("Authorization"))
	assert.Equal(t, false, got.Body["stream"])
	opts := got.Body["options"].(map[string]any)
	assert.EqualValues(t, 512, opts["num_predict"])
}

func TestOllamaChatURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/api/chat", ollamaChatURL("http://localhost:11434/api"))
	assert.Equal(t, "http://localhost:11434/api/chat", ollamaChatURL("http://localhost:11434/api/chat/"))
	assert.Equal(t, "", ollamaChatURL(""))
}

func TestAdapter_Non2xxIsProviderError(t *testing.T) {
	srv, _ := stubServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`)
	cfg := &models.ProviderConfig{Name: "groq", APIEndpoint: srv.URL}

	text, err := NewOpenAIAdapter(Options{}).Call(context.Background(), cfg, "k", testRequest())
	assert.Empty(t, text)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "groq", perr.ProviderName)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Contains(t, perr.Error(), "slow down")
}

func TestAdapter_BadJSONIsProviderError(t *testing.T) {
	srv, _ := stubServer(t, http.StatusOK, `<html>gateway</html>`)
	cfg := &models.ProviderConfig{Name: "anthropic_claude", APIEndpoint: srv.URL}

	_, err := NewAnthropicAdapter(Options{}).Call(context.Background(), cfg, "k", testRequest())
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusOK, perr.StatusCode)
	assert.Contains(t, perr.Error(), "failed to decode response")
}

func TestAdapter_EmptyReplyIsProviderError(t *testing.T) {
	cases := []struct {
		name    string
		adapter Adapter
		body    string
	}{
		{"openai no choices", NewOpenAIAdapter(Options{}), `{"choices":[]}`},
		{"gemini no parts", NewGeminiAdapter(Options{}), `{"candidates":[{"content":{"parts":[]}}]}`},
		{"anthropic empty text", NewAnthropicAdapter(Options{}), `{"content":[{"text":""}]}`},
		{"huggingface empty list", NewHuggingFaceAdapter(Options{}), `[]`},
		{"ollama no message", NewOllamaAdapter(Options{}), `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := stubServer(t, http.StatusOK, tc.body)
			cfg := &models.ProviderConfig{Name: "p", APIEndpoint: srv.URL, IsLocal: true}

			text, err := tc.adapter.Call(context.Background(), cfg, "k", testRequest())
			assert.Empty(t, text)
			assert.ErrorIs(t, err, ErrEmptyReply)

			var perr *ProviderError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestAdapter_TimeoutIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	cfg := &models.ProviderConfig{Name: "groq", APIEndpoint: srv.URL}
	adapter := NewOpenAIAdapter(Options{RemoteTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := adapter.Call(context.Background(), cfg, "k", testRequest())
	assert.Less(t, time.Since(start), time.Second)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, perr.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdapter_MissingKey(t *testing.T) {
	srv, got := stubServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)

	remote := &models.ProviderConfig{Name: "groq", APIEndpoint: srv.URL}
	_, err := NewOpenAIAdapter(Options{}).Call(context.Background(), remote, "", testRequest())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Nil(t, got.Header, "no request should be sent without a key")

	local := &models.ProviderConfig{Name: "lmstudio", APIEndpoint: srv.URL, IsLocal: true}
	text, err := NewOpenAIAdapter(Options{}).Call(context.Background(), local, "", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestAdapter_NoEndpoint(t *testing.T) {
	cfg := &models.ProviderConfig{Name: "custom"}
	_, err := NewOpenAIAdapter(Options{}).Call(context.Background(), cfg, "k", testRequest())
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, err.Error(), "no endpoint")
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(Options{SiteURL: "https://erp.example.com"})

	cases := map[string]catalog.Family{
		"openrouter":       catalog.FamilyOpenRouter,
		"google_gemini":    catalog.FamilyGemini,
		"anthropic_claude": catalog.FamilyAnthropic,
		"huggingface":      catalog.FamilyHuggingFace,
		"ollama":           catalog.FamilyOllama,
		"groq":             catalog.FamilyOpenAI,
		"my_private_llm":   catalog.FamilyOpenAI,
	}
	for name, family := range cases {
		a := r.Resolve(&models.ProviderConfig{Name: name})
		assert.Equal(t, family, a.Family(), name)
	}

	assert.Len(t, r.SupportedFamilies(), 6)
}

func TestNewCanonicalRequest(t *testing.T) {
	cfg := &models.ProviderConfig{Name: "anthropic_claude", MaxTokens: 300000, Temperature: utils.Ptr(0.1)}
	req := NewCanonicalRequest(cfg, "sys", "msg", 0.7)
	assert.Equal(t, "claude-3.5-sonnet", req.Model)
	assert.Equal(t, 200000, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)

	cfg = &models.ProviderConfig{Name: "groq"}
	req = NewCanonicalRequest(cfg, "sys", "msg", 0.7)
	assert.Equal(t, 2048, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
}

func TestSimpleAPIKeyAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	authCtx, err := NewSimpleAPIKeyAuth("abc", "", "Token ").Authenticate(context.Background())
	require.NoError(t, err)
	require.NoError(t, authCtx.ApplyToRequest(context.Background(), req))
	assert.Equal(t, "Token abc", req.Header.Get("Authorization"))

	_, err = NewBearerAuth("").Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
