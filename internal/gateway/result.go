package gateway

import (
	"smartai_gateway/internal/intent"
	"smartai_gateway/internal/logging"
)

// ChatRequest is one inbound user message.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	UserRef   string `json:"user_ref,omitempty"`
}

type Dataset struct {
	Label string    `json:"label,omitempty"`
	Data  []float64 `json:"data"`
}

type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Chart is a chart.js style configuration rendered by the chat widget.
type Chart struct {
	Type  string    `json:"type"`
	Title string    `json:"title"`
	Data  ChartData `json:"data"`
}

// Action is a follow-up the UI offers next to a reply.
type Action struct {
	Action string `json:"action"`
	Icon   string `json:"icon"`
}

// Result is returned for every chat call. On failure Error, ErrorCode and
// FallbackMessage are set and Success is false.
type Result struct {
	Success          bool              `json:"success"`
	RequestID        string            `json:"request_id"`
	Response         string            `json:"response,omitempty"`
	Intent           intent.Intent     `json:"intent,omitempty"`
	Entities         map[string]any    `json:"entities,omitempty"`
	Provider         string            `json:"provider,omitempty"`
	Model            string            `json:"model,omitempty"`
	ResponseTimeMS   int64             `json:"response_time_ms"`
	Charts           []Chart           `json:"charts"`
	SuggestedActions []Action          `json:"suggested_actions"`
	Exportable       bool              `json:"exportable"`
	Warnings         []Warning         `json:"warnings,omitempty"`
	Attempts         []logging.Attempt `json:"attempts,omitempty"`
	Error            string            `json:"error,omitempty"`
	ErrorCode        ErrorCode         `json:"error_code,omitempty"`
	FallbackMessage  string            `json:"fallback_message,omitempty"`

	err error
}

// Err returns the underlying error of a failed call, or nil.
func (r *Result) Err() error {
	return r.err
}

// HasWarning reports whether a warning with the given code was recorded.
func (r *Result) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func newResult(requestID string) *Result {
	return &Result{
		RequestID:        requestID,
		Charts:           []Chart{},
		SuggestedActions: []Action{},
	}
}
