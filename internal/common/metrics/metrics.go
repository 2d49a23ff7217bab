// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConsultationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consultations_completed_total",
			Help: "Total number of consultations completed",
		},
		[]string{"outcome"},
	)

	ConsultationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consultations_failed_total",
			Help: "Total number of consultations that ended with an apology response",
		},
		[]string{"error_code"},
	)

	ConsultationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consultation_duration_seconds",
			Help:    "End-to-end consultation processing time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	ConsultationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consultations_active",
			Help: "Number of consultations currently in flight",
		},
	)

	WorkflowNodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "workflow_node_duration_seconds",
			Help: "Duration of individual workflow nodes in seconds",
		},
		[]string{"node"},
	)

	SearchBranchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_branch_failures_total",
			Help: "Web search branches that degraded to empty results",
		},
		[]string{"category"},
	)

	RetrievalFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_fallbacks_total",
			Help: "Retrieval operations that used a fallback path instead of the primary strategy",
		},
		[]string{"strategy"},
	)

	AssessmentFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_fallbacks_total",
			Help: "Assessments built from the keyword heuristic because structured output was invalid",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route, method, and status code",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"route", "method", "status"},
	)
)
