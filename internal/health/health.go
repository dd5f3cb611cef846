// Package health keeps an in-process record of provider call outcomes.
//
// The record is informational: it feeds the admin health endpoint and logs
// but does not take part in provider selection, which depends only on
// priority and rate limits.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"smartai_gateway/internal/providers"
)

type FailureType string

const (
	TimeoutFailure    FailureType = "timeout"
	ConnectionFailure FailureType = "connection"
	ServerError       FailureType = "server_error"
	RateLimitFailure  FailureType = "rate_limit"
	ClientError       FailureType = "client_error"
	UnknownFailure    FailureType = "unknown"
)

// Config controls when a provider is reported unhealthy.
type Config struct {
	FailureThreshold int           // Consecutive failures before the provider is flagged
	CooldownDuration time.Duration // How long the flag stays after the last failure
	RetainFor        time.Duration // Idle entries older than this are dropped by Cleanup
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		CooldownDuration: 5 * time.Minute,
		RetainFor:        24 * time.Hour,
	}
}

// Stats is a point-in-time snapshot of one provider's record.
type Stats struct {
	Provider            string                `json:"provider"`
	Healthy             bool                  `json:"healthy"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	TotalFailures       int64                 `json:"total_failures"`
	TotalRequests       int64                 `json:"total_requests"`
	FailureRate         float64               `json:"failure_rate"`
	LastFailureTime     time.Time             `json:"last_failure_time,omitempty"`
	LastSuccessTime     time.Time             `json:"last_success_time,omitempty"`
	UnhealthyUntil      time.Time             `json:"unhealthy_until,omitempty"`
	LastError           string                `json:"last_error,omitempty"`
	FailureTypes        map[FailureType]int64 `json:"failure_types"`
}

type state struct {
	consecutiveFailures int
	totalFailures       int64
	totalRequests       int64
	lastFailure         time.Time
	lastSuccess         time.Time
	unhealthyUntil      time.Time
	lastError           string
	failureTypes        map[FailureType]int64
}

// Tracker records successes and failures per provider name.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*state
	config Config
	now    func() time.Time
}

func NewTracker(config Config) *Tracker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.CooldownDuration <= 0 {
		config.CooldownDuration = def.CooldownDuration
	}
	if config.RetainFor <= 0 {
		config.RetainFor = def.RetainFor
	}
	return &Tracker{
		states: make(map[string]*state),
		config: config,
		now:    time.Now,
	}
}

func (t *Tracker) getOrCreate(provider string) *state {
	s, ok := t.states[provider]
	if !ok {
		s = &state{failureTypes: make(map[FailureType]int64)}
		t.states[provider] = s
	}
	return s
}

func (t *Tracker) RecordSuccess(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.getOrCreate(provider)
	s.consecutiveFailures = 0
	s.totalRequests++
	s.lastSuccess = t.now()
	s.unhealthyUntil = time.Time{}
}

// RecordFailure notes a failed call and returns the failure's classification.
func (t *Tracker) RecordFailure(provider string, err error) FailureType {
	ft := Classify(err)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s := t.getOrCreate(provider)
	s.consecutiveFailures++
	s.totalFailures++
	s.totalRequests++
	s.lastFailure = now
	s.failureTypes[ft]++
	if err != nil {
		s.lastError = err.Error()
	}
	if s.consecutiveFailures >= t.config.FailureThreshold {
		s.unhealthyUntil = now.Add(t.config.CooldownDuration)
	}
	return ft
}

// IsHealthy reports false while a provider is inside its failure cooldown.
// Providers with no record are healthy.
func (t *Tracker) IsHealthy(provider string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.states[provider]
	if !ok {
		return true
	}
	return !t.now().Before(s.unhealthyUntil)
}

func (t *Tracker) Stats(provider string) Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.states[provider]
	if !ok {
		return Stats{Provider: provider, Healthy: true, FailureTypes: map[FailureType]int64{}}
	}
	return t.snapshot(provider, s)
}

// All returns every tracked provider, sorted by name.
func (t *Tracker) All() []Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Stats, 0, len(t.states))
	for name, s := range t.states {
		out = append(out, t.snapshot(name, s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func (t *Tracker) Reset(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, provider)
}

// Cleanup drops healthy entries with no activity within RetainFor.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	threshold := now.Add(-t.config.RetainFor)
	removed := 0
	for name, s := range t.states {
		if now.Before(s.unhealthyUntil) {
			continue
		}
		if s.lastFailure.Before(threshold) && s.lastSuccess.Before(threshold) {
			delete(t.states, name)
			removed++
		}
	}
	return removed
}

func (t *Tracker) snapshot(name string, s *state) Stats {
	rate := 0.0
	if s.totalRequests > 0 {
		rate = float64(s.totalFailures) / float64(s.totalRequests) * 100
	}
	types := make(map[FailureType]int64, len(s.failureTypes))
	for k, v := range s.failureTypes {
		types[k] = v
	}
	return Stats{
		Provider:            name,
		Healthy:             !t.now().Before(s.unhealthyUntil),
		ConsecutiveFailures: s.consecutiveFailures,
		TotalFailures:       s.totalFailures,
		TotalRequests:       s.totalRequests,
		FailureRate:         rate,
		LastFailureTime:     s.lastFailure,
		LastSuccessTime:     s.lastSuccess,
		UnhealthyUntil:      s.unhealthyUntil,
		LastError:           s.lastError,
		FailureTypes:        types,
	}
}

// Classify maps a provider call error to a FailureType.
func Classify(err error) FailureType {
	if err == nil {
		return UnknownFailure
	}

	var perr *providers.ProviderError
	if errors.As(err, &perr) && perr.StatusCode != 0 {
		switch {
		case perr.StatusCode == http.StatusTooManyRequests:
			return RateLimitFailure
		case perr.StatusCode >= 500:
			return ServerError
		case perr.StatusCode >= 400:
			return ClientError
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutFailure
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return ConnectionFailure
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"connection refused", "connection reset", "no such host", "broken pipe"} {
		if strings.Contains(msg, kw) {
			return ConnectionFailure
		}
	}
	return UnknownFailure
}
