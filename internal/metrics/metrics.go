// Package metrics exposes the gateway's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartai_gateway/internal/storage"
)

// Recorder is what the chat pipeline reports into.
type Recorder interface {
	ObserveChat(status, intent string, d time.Duration)
	ObserveAttempt(provider, outcome string, d time.Duration)
	IncWarning(code string)
}

// Attempt outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors on a private registry so tests and multiple
// servers in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	chatRequests    *prometheus.CounterVec
	chatDuration    *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	warnings        *prometheus.CounterVec
	queueLength     prometheus.Gauge
	deadLetters     prometheus.Gauge
	dbConns         *prometheus.GaugeVec
	dbWaits         prometheus.Gauge
	sessionCache    prometheus.Gauge
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartai_chat_requests_total",
				Help: "Chat requests by result status and intent",
			},
			[]string{"status", "intent"},
		),
		chatDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartai_chat_request_duration_seconds",
				Help:    "End-to-end chat latency",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"intent"},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartai_provider_attempts_total",
				Help: "Provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartai_provider_latency_seconds",
				Help:    "Provider call latency",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartai_chat_warnings_total",
				Help: "Non-fatal pipeline warnings by code",
			},
			[]string{"code"},
		),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartai_usage_queue_length",
			Help: "Usage log records waiting to be written",
		}),
		deadLetters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartai_usage_dead_letters",
			Help: "Usage log records in the dead letter queue",
		}),
		dbConns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smartai_db_connections",
				Help: "Database pool connections by state",
			},
			[]string{"state"},
		),
		dbWaits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartai_db_wait_count",
			Help: "Total connections waited for since the pool opened",
		}),
		sessionCache: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartai_session_cache_entries",
			Help: "Session ids held in the existence cache",
		}),
	}

	m.registry.MustRegister(
		m.chatRequests,
		m.chatDuration,
		m.providerCalls,
		m.providerLatency,
		m.warnings,
		m.queueLength,
		m.deadLetters,
		m.dbConns,
		m.dbWaits,
		m.sessionCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveChat(status, intent string, d time.Duration) {
	if intent == "" {
		intent = "none"
	}
	m.chatRequests.WithLabelValues(status, intent).Inc()
	m.chatDuration.WithLabelValues(intent).Observe(d.Seconds())
}

func (m *Metrics) ObserveAttempt(provider, outcome string, d time.Duration) {
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) IncWarning(code string) {
	m.warnings.WithLabelValues(code).Inc()
}

// SetQueueStats records the usage worker's backlog.
func (m *Metrics) SetQueueStats(length, deadLetters int) {
	m.queueLength.Set(float64(length))
	m.deadLetters.Set(float64(deadLetters))
}

// SetDBStats records a snapshot of the connection pool and session cache.
func (m *Metrics) SetDBStats(s storage.DBStats) {
	m.dbConns.WithLabelValues("open").Set(float64(s.OpenConnections))
	m.dbConns.WithLabelValues("in_use").Set(float64(s.InUse))
	m.dbConns.WithLabelValues("idle").Set(float64(s.Idle))
	m.dbConns.WithLabelValues("max").Set(float64(s.MaxOpenConnections))
	m.dbWaits.Set(float64(s.WaitCount))
	m.sessionCache.Set(float64(s.SessionCacheStats.Size))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveChat(string, string, time.Duration) {}
func (Noop) ObserveAttempt(string, string, time.Duration) {}
func (Noop) IncWarning(string) {}
