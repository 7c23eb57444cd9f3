package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// StreamDroppedTotal tracks quote updates dropped on a full channel.
	StreamDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_stream_dropped_total",
			Help: "Total number of streamed quotes dropped due to backpressure",
		},
		[]string{"venue"},
	)
)
