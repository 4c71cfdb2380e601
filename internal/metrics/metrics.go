// Package metrics provides Prometheus instrumentation for the risk service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safedrive"

var (
	// AssessmentsTotal counts completed risk assessments by level.
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_assessments_total",
			Help:      "Total completed risk assessments by risk level.",
		},
		[]string{"level"},
	)

	// AssessmentFailuresTotal counts failed risk assessments by error kind.
	AssessmentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_assessment_failures_total",
			Help:      "Total failed risk assessments by kind (validation, data_access, persistence).",
		},
		[]string{"kind"},
	)

	// AssessmentDuration observes end-to-end assessment latency.
	AssessmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_assessment_duration_seconds",
			Help:      "Duration of a risk assessment including store reads and writes.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// TelemetryMessagesTotal counts ingest messages by outcome.
	TelemetryMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_messages_total",
			Help:      "Total telemetry ingest messages by result.",
		},
		[]string{"result"},
	)

	// TelemetrySamplesStored counts telemetry samples written to the store.
	TelemetrySamplesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_samples_stored_total",
			Help:      "Total telemetry samples stored.",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Middleware records request count and latency per route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
