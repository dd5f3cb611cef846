package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageLog records the outcome of one chat call.
type UsageLog struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RequestID      uuid.UUID `db:"request_id" json:"request_id"`
	Provider       string    `db:"provider" json:"provider"`
	Model          string    `db:"model" json:"model"`
	Intent         string    `db:"intent" json:"intent"`
	InputLength    int       `db:"input_length" json:"input_length"`
	ResponseTimeMS int64     `db:"response_time_ms" json:"response_time_ms"`
	Success        bool      `db:"success" json:"success"`
	ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UsageStats aggregates usage logs for one provider.
type UsageStats struct {
	Provider          string  `db:"provider" json:"provider"`
	Requests          int64   `db:"requests" json:"requests"`
	Successes         int64   `db:"successes" json:"successes"`
	AvgResponseTimeMS float64 `db:"avg_response_time_ms" json:"avg_response_time_ms"`
}

// SuccessRate returns Successes/Requests, or 0 when there were no requests.
func (s UsageStats) SuccessRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Requests)
}
