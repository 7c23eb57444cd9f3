package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ScansTotal tracks scan cycles run.
	ScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_scans_total",
			Help: "Total number of scan cycles",
		},
	)

	// ScanDuration tracks scan cycle duration.
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crossvenue_arb_scan_duration_seconds",
			Help:    "Scan cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QuoteRefreshErrorsTotal tracks failed quote fetches by venue.
	QuoteRefreshErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossvenue_arb_quote_refresh_errors_total",
			Help: "Total number of failed quote refreshes",
		},
		[]string{"venue"},
	)
)
