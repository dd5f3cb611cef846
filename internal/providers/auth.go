package providers

import (
	"context"
	"fmt"
	"net/http"
)

// Authenticator prepares credentials for an outbound provider request.
type Authenticator interface {
	Authenticate(ctx context.Context) (AuthContext, error)
}

// AuthContext applies prepared credentials to a request.
type AuthContext interface {
	ApplyToRequest(ctx context.Context, req *http.Request) error
}

// SimpleAPIKeyAuth sends the API key in a single header.
// Header defaults to Authorization; prefix is sent as given, so "" means a raw key.
type SimpleAPIKeyAuth struct {
	apiKey     string
	headerName string
	prefix     string
}

// NewSimpleAPIKeyAuth creates a simple API key authenticator
func NewSimpleAPIKeyAuth(apiKey, headerName, prefix string) *SimpleAPIKeyAuth {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &SimpleAPIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
		prefix:     prefix,
	}
}

// NewBearerAuth is the Authorization: Bearer form used by OpenAI-compatible APIs.
func NewBearerAuth(apiKey string) *SimpleAPIKeyAuth {
	return NewSimpleAPIKeyAuth(apiKey, "Authorization", "Bearer ")
}

// Authenticate implements Authenticator
func (a *SimpleAPIKeyAuth) Authenticate(ctx context.Context) (AuthContext, error) {
	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &simpleAuthContext{
		headerName:  a.headerName,
		headerValue: a.prefix + a.apiKey,
	}, nil
}

type simpleAuthContext struct {
	headerName  string
	headerValue string
}

// ApplyToRequest implements AuthContext
func (c *simpleAuthContext) ApplyToRequest(ctx context.Context, req *http.Request) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	req.Header.Set(c.headerName, c.headerValue)
	return nil
}

// noAuth is used for on-box providers that take no credentials.
type noAuth struct{}

func (noAuth) Authenticate(ctx context.Context) (AuthContext, error) { return noAuth{}, nil }

func (noAuth) ApplyToRequest(ctx context.Context, req *http.Request) error { return nil }
