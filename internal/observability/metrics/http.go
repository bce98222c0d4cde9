package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRequestsTotal  *prometheus.CounterVec
	chatDuration       *prometheus.HistogramVec
	agentAttempts      *prometheus.HistogramVec
	toolCallsTotal     *prometheus.CounterVec
	memoryHitsTotal    *prometheus.CounterVec
	memoryWritesTotal  *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
	llmTokensTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfinder",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devfinder",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devfinder",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfinder",
			Subsystem: "agent",
			Name:      "chat_requests_total",
			Help:      "Total completed chat requests by outcome.",
		},
		[]string{"service", "status"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devfinder",
			Subsystem: "agent",
			Name:      "chat_duration_seconds",
			Help:      "End-to-end chat request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	agentAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devfinder",
			Subsystem: "agent",
			Name:      "model_attempts",
			Help:      "Distribution of model invocation attempts per chat request.",
			Buckets:   []float64{1, 2, 3},
		},
		[]string{"service"},
	)
	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfinder",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations dispatched by the agent.",
		},
		[]string{"service", "tool", "status"},
	)
	memoryHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfinder",
			Subsystem: "memory",
			Name:      "hits_total",
			Help:      "Total retrieved memory turns across chat requests.",
		},
		[]string{"service"},
	)
	memoryWritesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfinder",
			Subsystem: "memory",
			Name:      "writes_total",
			Help:      "Total best-effort memory writes by outcome.",
		},
		[]string{"service", "status"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfinder",
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"service", "operation", "from", "to"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfinder",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Approximate token usage by direction.",
		},
		[]string{"service", "direction", "model"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatRequestsTotal,
		chatDuration,
		agentAttempts,
		toolCallsTotal,
		memoryHitsTotal,
		memoryWritesTotal,
		breakerTransitions,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		chatRequestsTotal:  chatRequestsTotal,
		chatDuration:       chatDuration,
		agentAttempts:      agentAttempts,
		toolCallsTotal:     toolCallsTotal,
		memoryHitsTotal:    memoryHitsTotal,
		memoryWritesTotal:  memoryWritesTotal,
		breakerTransitions: breakerTransitions,
		llmTokensTotal:     llmTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordChatRun(service, status string, attempts int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.chatRequestsTotal.WithLabelValues(service, status).Inc()
	m.chatDuration.WithLabelValues(service).Observe(duration.Seconds())
	if attempts > 0 {
		m.agentAttempts.WithLabelValues(service).Observe(float64(attempts))
	}
}

func (m *HTTPServerMetrics) RecordToolCall(service, tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.toolCallsTotal.WithLabelValues(service, tool, status).Inc()
}

func (m *HTTPServerMetrics) RecordMemoryHits(service string, hits int) {
	if hits <= 0 {
		return
	}
	m.memoryHitsTotal.WithLabelValues(service).Add(float64(hits))
}

func (m *HTTPServerMetrics) RecordMemoryWrite(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.memoryWritesTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordBreakerTransition(service, operation, from, to string) {
	m.breakerTransitions.WithLabelValues(service, operation, from, to).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out", model).Add(float64(completionTokens))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
