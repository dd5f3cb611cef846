package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"smartai_gateway/internal/models"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	defaultLocalTimeout  = 60 * time.Second

	// maxResponseBytes bounds how much of a provider reply is read.
	maxResponseBytes = 8 << 20
	errorSnippetLen  = 256
)

// Options configures the HTTP behaviour shared by all adapters.
type Options struct {
	SiteURL       string       // Sent as HTTP-Referer to providers that require it
	HTTPClient    *http.Client // Shared client; a pooled default is built when nil
	RemoteTimeout time.Duration
	LocalTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = newHTTPClient()
	}
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = defaultRemoteTimeout
	}
	if o.LocalTimeout <= 0 {
		o.LocalTimeout = defaultLocalTimeout
	}
	return o
}

// newHTTPClient returns a pooled client. Per-call deadlines come from the
// request context rather than Client.Timeout.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// httpCaller is the JSON-over-HTTP plumbing embedded by every adapter.
type httpCaller struct {
	client        *http.Client
	remoteTimeout time.Duration
	localTimeout  time.Duration
}

func newHTTPCaller(opts Options) httpCaller {
	opts = opts.withDefaults()
	return httpCaller{
		client:        opts.HTTPClient,
		remoteTimeout: opts.RemoteTimeout,
		localTimeout:  opts.LocalTimeout,
	}
}

// authFor picks the credential strategy for cfg. On-box providers may run
// without a key; remote providers always need one.
func authFor(cfg *models.ProviderConfig, apiKey, header, prefix string) Authenticator {
	if apiKey == "" && cfg.Local() {
		return noAuth{}
	}
	return NewSimpleAPIKeyAuth(apiKey, header, prefix)
}

// postJSON posts payload to url and decodes a 2xx reply into out. It returns
// the HTTP status so callers can attach it to reply-path errors.
func (c httpCaller) postJSON(ctx context.Context, cfg *models.ProviderConfig, url string, auth Authenticator, headers map[string]string, payload, out any) (int, error) {
	if url == "" {
		return 0, NewProviderError(cfg.Name, 0, errors.New("no endpoint configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout(c.remoteTimeout, c.localTimeout))
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, NewProviderError(cfg.Name, 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, NewProviderError(cfg.Name, 0, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	authCtx, err := auth.Authenticate(ctx)
	if err != nil {
		return 0, NewProviderError(cfg.Name, 0, fmt.Errorf("authentication failed: %w", err))
	}
	if err := authCtx.ApplyToRequest(ctx, httpReq); err != nil {
		return 0, NewProviderError(cfg.Name, 0, fmt.Errorf("failed to apply auth: %w", err))
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, NewProviderError(cfg.Name, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, NewProviderError(cfg.Name, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, NewProviderError(cfg.Name, resp.StatusCode, fmt.Errorf("unexpected response: %s", snippet(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, NewProviderError(cfg.Name, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return resp.StatusCode, nil
}

// reply turns an extracted reply into the adapter result.
func reply(cfg *models.ProviderConfig, status int, text string) (string, error) {
	if text == "" {
		return "", NewProviderError(cfg.Name, status, ErrEmptyReply)
	}
	return text, nil
}

func snippet(b []byte) string {
	s := string(bytes.TrimSpace(b))
	if len(s) > errorSnippetLen {
		s = s[:errorSnippetLen] + "..."
	}
	if s == "" {
		return "<empty body>"
	}
	return s
}

// joinPrompt is the single-text form used by families without a system role.
func joinPrompt(req CanonicalRequest) string {
	return req.SystemPrompt + "\n\nUser: " + req.UserMessage
}
