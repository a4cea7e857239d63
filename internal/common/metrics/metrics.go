package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_transitions_total",
			Help: "Total number of successful job status transitions",
		},
		[]string{"from", "to"},
	)

	JobTransitionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_transitions_failed_total",
			Help: "Total number of rejected job status transitions",
		},
		[]string{"operation", "kind"},
	)

	ApplicationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_created_total",
			Help: "Total number of helper applications created",
		},
	)

	SelectionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_outcomes_total",
			Help: "Accept-application outcomes (won, lost_race, rejected_batch)",
		},
		[]string{"outcome"},
	)

	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Total number of notifications emitted by type and status",
		},
		[]string{"type", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "lifecycle_request_duration_seconds",
			Help: "Duration of lifecycle operations in seconds",
		},
		[]string{"operation"},
	)
)
