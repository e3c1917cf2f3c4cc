package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetcms",
			Name:      "store_calls_total",
			Help:      "Total number of remote spreadsheet calls.",
		},
		[]string{"op", "sheet", "result"},
	)

	storeCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sheetcms",
			Name:      "store_call_duration_seconds",
			Help:      "Remote spreadsheet call duration in seconds.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"op", "sheet"},
	)

	staleWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetcms",
			Name:      "stale_position_total",
			Help:      "Writes whose cached row position no longer held the expected record.",
		},
		[]string{"sheet", "outcome"},
	)
)

// ObserveStoreCall records one remote call. result is "ok", "error" or "unavailable".
func ObserveStoreCall(op, sheet, result string, d time.Duration) {
	storeCallsTotal.WithLabelValues(op, sheet, result).Inc()
	storeCallDuration.WithLabelValues(op, sheet).Observe(d.Seconds())
}

// StalePosition records a stale-position detection. outcome is "resolved" or "conflict".
func StalePosition(sheet, outcome string) {
	staleWritesTotal.WithLabelValues(sheet, outcome).Inc()
}
