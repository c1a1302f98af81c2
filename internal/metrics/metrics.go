// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_reconciliations_total",
			Help: "Total number of session reconciliations",
		},
		[]string{"session_type", "outcome"},
	)

	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_verdicts_total",
			Help: "Attendance verdicts per status",
		},
		[]string{"session_type", "status"},
	)

	PunchesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_punches_dropped_total",
			Help: "Punches dropped before matching",
		},
		[]string{"reason"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
