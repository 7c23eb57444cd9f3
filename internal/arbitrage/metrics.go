package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// EvaluationsTotal tracks pair evaluations performed.
	EvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_evaluations_total",
			Help: "Total number of pair evaluations",
		},
	)

	// OpportunitiesDetectedTotal tracks qualifying opportunities by direction.
	OpportunitiesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_opportunities_detected_total",
			Help: "Total number of qualifying opportunities detected",
		},
		[]string{"direction"},
	)

	// RejectedNoHeadroomTotal tracks opportunities dropped for zero executable size.
	RejectedNoHeadroomTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_rejected_no_headroom_total",
			Help: "Total number of opportunities rejected for zero executable size",
		},
	)

	// RevalidationFailuresTotal tracks execution-time revalidations that no longer qualify.
	RevalidationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_revalidation_failures_total",
			Help: "Total number of opportunities that failed execution-time revalidation",
		},
	)
)
