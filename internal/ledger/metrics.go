package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// FillsAppliedTotal tracks fills applied to positions.
	FillsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_fills_applied_total",
			Help: "Total number of fills applied to the position ledger",
		},
		[]string{"venue"},
	)

	// FillsDedupedTotal tracks duplicate fill applications ignored.
	FillsDedupedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_fills_deduped_total",
			Help: "Total number of duplicate fills ignored by order ID",
		},
		[]string{"venue"},
	)

	// ReservationsRejectedTotal tracks admission-control rejections.
	ReservationsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_reservations_rejected_total",
			Help: "Total number of reservations rejected by the exposure limit",
		},
		[]string{"venue"},
	)

	// NetExposure tracks signed net exposure per market.
	NetExposure = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crossvenue_arb_net_exposure",
			Help: "Signed net exposure per venue and market",
		},
		[]string{"venue", "market"},
	)
)
