// Package logging ships per-chat audit records to durable storage.
//
// The gateway hands every completed chat call to a Sink. S3Sink batches
// records through a queue and uploads them as JSON Lines objects. FileSink
// writes them to size-rotated local files. NoopSink discards them.
package logging

import (
	"context"
	"time"
)

// Attempt is one provider call made while serving a chat request.
type Attempt struct {
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

// LogRecord is the audit entry written for each chat call.
type LogRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	SessionID   string    `json:"session_id"`
	UserRef     string    `json:"user_ref,omitempty"`
	Language    string    `json:"language"`
	Intent      string    `json:"intent"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Attempts    []Attempt `json:"attempts,omitempty"`
	InputLength int       `json:"input_length"`
	ProviderMs  int64     `json:"provider_ms"`
	GatewayMs   int64     `json:"gateway_ms"`
	CostUSD     float64   `json:"cost_usd"`
	Success     bool      `json:"success"`
	ErrorCode   string    `json:"error_code,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Sink receives log records from the gateway.
type Sink interface {
	// Enqueue hands off a record without waiting for it to be persisted.
	Enqueue(rec *LogRecord) error

	// Shutdown flushes buffered records and stops background work.
	Shutdown(ctx context.Context) error
}

// NoopSink discards records.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *LogRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}
