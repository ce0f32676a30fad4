package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HistoryCacheLookups counts stock history cache lookups by result
	// ("hit", "miss", "stale", "mismatch").
	HistoryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_history_cache_lookups_total",
			Help: "Stock history cache lookups by result",
		},
		[]string{"result"},
	)

	// HistoryCacheWrites counts cache write-backs by outcome ("written", "skipped").
	HistoryCacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_history_cache_writes_total",
			Help: "Stock history cache write-backs by outcome",
		},
		[]string{"outcome"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_provider_requests_total",
			Help: "Market data provider requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	ValuationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_valuation_duration_seconds",
			Help:    "Time to compute a valuation series",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"range"},
	)

	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_alerts_dispatched_total",
			Help: "Price alerts dispatched by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "status"},
	)
)
