// Package observability provides Prometheus metrics, HTTP middleware, and
// optional Sentry error reporting for agentserver.
package observability

import "github.com/prometheus/client_golang/prometheus"

// InvocationBuckets defines histogram buckets suited for agent invocations,
// ranging from 10ms to 120s.
var InvocationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Invocation modes used as the mode label.
const (
	ModeInvoke = "invoke"
	ModeStream = "stream"
)

var (
	// RequestsTotal counts all HTTP requests by method, status class, and mode.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentserver_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "mode"},
	)

	// RequestDuration records HTTP request duration in seconds by method and mode.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentserver_request_duration_seconds",
			Help:    "Request duration",
			Buckets: InvocationBuckets,
		},
		[]string{"method", "mode"},
	)

	// StreamingConnections tracks the number of streams currently producing frames.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentserver_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// StreamChunksTotal counts chunk frames written to clients.
	StreamChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentserver_stream_chunks_total",
			Help: "Stream chunks sent",
		},
	)

	// HandlerErrorsTotal counts failures of registered handlers by mode.
	HandlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentserver_handler_errors_total",
			Help: "Handler errors",
		},
		[]string{"mode"},
	)

	// TraceLookupFailuresTotal counts requested traces that could not be
	// attached to a response.
	TraceLookupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentserver_trace_lookup_failures_total",
			Help: "Trace lookup failures",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentserver_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		StreamChunksTotal,
		HandlerErrorsTotal,
		TraceLookupFailuresTotal,
		RateLimitRejectedTotal,
	)
}
