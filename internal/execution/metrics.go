package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// AttemptsTotal tracks completed attempts by terminal state.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_attempts_total",
			Help: "Total number of execution attempts by terminal state",
		},
		[]string{"state"},
	)

	// SingleFlightDroppedTotal tracks opportunities dropped because the pair
	// already had an attempt in flight.
	SingleFlightDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_single_flight_dropped_total",
			Help: "Total number of opportunities dropped for an in-flight attempt on the pair",
		},
	)

	// UnwindAttemptsTotal tracks individual unwind orders placed.
	UnwindAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_unwind_attempts_total",
			Help: "Total number of unwind orders placed",
		},
	)

	// UnwindResidualsTotal tracks attempts that ended with unhedged residual.
	UnwindResidualsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_unwind_residuals_total",
			Help: "Total number of attempts flagged with unhedged residual",
		},
	)

	// RealizedEdgeTotal accumulates realized edge across attempts. A gauge
	// because slipped fills can contribute negative edge.
	RealizedEdgeTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crossvenue_arb_realized_edge_total",
			Help: "Cumulative realized edge across completed attempts",
		},
	)
)
