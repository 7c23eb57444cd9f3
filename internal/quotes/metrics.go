package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// QuotesStoredTotal tracks quotes written to the cache.
	QuotesStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_quotes_stored_total",
			Help: "Total number of quotes stored in the quote cache",
		},
		[]string{"venue"},
	)

	// QuotesStaleTotal tracks reads rejected for staleness.
	QuotesStaleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_quotes_stale_total",
			Help: "Total number of quote reads rejected as stale",
		},
		[]string{"venue"},
	)
)
