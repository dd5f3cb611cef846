package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"smartai_gateway/internal/providers"
)

// ErrorCode classifies a failed chat call.
type ErrorCode string

const (
	CodeInvalidInput        ErrorCode = "invalid_input"
	CodeSessionNotFound     ErrorCode = "session_not_found"
	CodeNoProviderAvailable ErrorCode = "no_provider_available"
	CodeProviderError       ErrorCode = "provider_error"
	CodeAllProvidersFailed  ErrorCode = "all_providers_failed"
	CodeInternal            ErrorCode = "internal_error"
)

// HTTPStatus maps the code to the status returned by the HTTP API.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeNoProviderAvailable:
		return http.StatusServiceUnavailable
	case CodeProviderError, CodeAllProvidersFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrInvalidInput        = errors.New("message cannot be empty")
	ErrSessionNotFound     = errors.New("invalid session ID")
	ErrNoProviderAvailable = errors.New("no AI providers available, please configure at least one")
)

// FallbackMessage is shown to the end user whenever a chat call fails.
const FallbackMessage = "معافی ہے، کچھ تقنیکی مسئلہ ہے۔ براہ کرم دوبارہ کوشش کریں۔"

// WarningCode names a non-fatal problem that did not fail the call.
type WarningCode string

const (
	WarnContextFetch WarningCode = "context_fetch_error"
	WarnPersistence  WarningCode = "persistence_error"
	WarnRateCounter  WarningCode = "rate_counter_error"
	WarnAudit        WarningCode = "audit_error"
)

type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// AttemptsError is returned when every candidate provider failed.
// It unwraps to the last *providers.ProviderError.
type AttemptsError struct {
	Attempts int
	Last     *providers.ProviderError
}

func (e *AttemptsError) Error() string {
	if e.Attempts <= 1 {
		return e.Last.Error()
	}
	return fmt.Sprintf("all %d providers failed, last error: %v", e.Attempts, e.Last)
}

func (e *AttemptsError) Unwrap() error {
	return e.Last
}

// Code returns provider_error for a single attempt and all_providers_failed otherwise.
func (e *AttemptsError) Code() ErrorCode {
	if e.Attempts <= 1 {
		return CodeProviderError
	}
	return CodeAllProvidersFailed
}
