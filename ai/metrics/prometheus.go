// Package metrics exports chat orchestration metrics in Prometheus format.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skinsense"

// Exporter owns a private registry with every skinsense metric.
// A nil *Exporter is valid and records nothing.
type Exporter struct {
	registry *prometheus.Registry

	// Chat metrics
	chatLatency  *prometheus.HistogramVec
	chatRequests *prometheus.CounterVec
	chatActive   prometheus.Gauge

	// Stream metrics
	streamEvents     *prometheus.CounterVec
	streamSuppressed *prometheus.CounterVec
	backgroundTasks  *prometheus.CounterVec

	// Tool call metrics
	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec

	// LLM metrics
	llmLatency    *prometheus.HistogramVec
	llmTokensUsed *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.chatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_latency_seconds",
			Help:      "Chat request latency in seconds, from request to stream close",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider"},
	)

	e.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests by terminal outcome",
		},
		[]string{"provider", "status"},
	)

	e.chatActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_active",
			Help:      "Number of chat streams currently open",
		},
	)

	e.streamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Total number of stream events written",
		},
		[]string{"type"},
	)

	e.streamSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_suppressed_total",
			Help:      "Total number of duplicate payloads not re-emitted",
		},
		[]string{"kind"},
	)

	e.backgroundTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Total number of background persistence tasks by outcome",
		},
		[]string{"task", "status"},
	)

	e.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"},
	)

	e.toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_seconds",
			Help:      "Tool call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"tool"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM round latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider", "model"},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	registry.MustRegister(
		e.chatLatency,
		e.chatRequests,
		e.chatActive,
		e.streamEvents,
		e.streamSuppressed,
		e.backgroundTasks,
		e.toolCalls,
		e.toolLatency,
		e.llmLatency,
		e.llmTokensUsed,
	)

	return e
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// ChatStarted increments the active stream gauge.
func (e *Exporter) ChatStarted() {
	if e == nil {
		return
	}
	e.chatActive.Inc()
}

// RecordChatRequest records a finished chat request and decrements the
// active stream gauge. status is the terminal event type.
func (e *Exporter) RecordChatRequest(provider, status string, latency time.Duration) {
	if e == nil {
		return
	}
	e.chatActive.Dec()
	e.chatRequests.WithLabelValues(provider, status).Inc()
	e.chatLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordStreamEvent counts one written stream event.
func (e *Exporter) RecordStreamEvent(eventType string) {
	if e == nil {
		return
	}
	e.streamEvents.WithLabelValues(eventType).Inc()
}

// RecordSuppressed counts a payload dropped by signature dedup.
func (e *Exporter) RecordSuppressed(kind string) {
	if e == nil {
		return
	}
	e.streamSuppressed.WithLabelValues(kind).Inc()
}

// RecordBackgroundTask records the outcome of a persistence task.
func (e *Exporter) RecordBackgroundTask(task string, success bool) {
	if e == nil {
		return
	}
	e.backgroundTasks.WithLabelValues(task, statusLabel(success)).Inc()
}

// RecordToolCall records a tool call metric.
func (e *Exporter) RecordToolCall(toolName string, latency time.Duration, success bool) {
	if e == nil {
		return
	}
	e.toolCalls.WithLabelValues(toolName, statusLabel(success)).Inc()
	e.toolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
}

// RecordLLMLatency records one model round.
func (e *Exporter) RecordLLMLatency(provider, model string, latency time.Duration) {
	if e == nil {
		return
	}
	e.llmLatency.WithLabelValues(provider, model).Observe(latency.Seconds())
}

// RecordLLMTokens records LLM token usage.
func (e *Exporter) RecordLLMTokens(model, tokenType string, count int) {
	if e == nil || count <= 0 {
		return
	}
	e.llmTokensUsed.WithLabelValues(model, tokenType).Add(float64(count))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// Registry returns the Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
