package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Latency of calls to the external workflow API.
	WorkflowAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_api_request_duration_seconds",
			Help:    "Workflow API call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s, plan generation is slow
		},
		[]string{"operation", "outcome"},
	)

	ConsoleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_operations_total",
			Help: "Console operations by result",
		},
		[]string{"operation", "result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"method", "route", "status"},
	)
)

func RecordWorkflowAPIRequest(operation, outcome string, d time.Duration) {
	WorkflowAPIRequestDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func IncrementConsoleOperation(operation, result string) {
	ConsoleOperations.WithLabelValues(operation, result).Inc()
}

func RecordHTTPRequestDuration(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
