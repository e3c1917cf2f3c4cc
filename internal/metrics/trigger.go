package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var triggerDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sheetcms",
		Name:      "trigger_deliveries_total",
		Help:      "Webhook notifications by sheet and result.",
	},
	[]string{"sheet", "result"},
)

// TriggerDelivery records one webhook notification. result is "ok",
// "rpc_error" or "failed".
func TriggerDelivery(sheet, result string) {
	triggerDeliveriesTotal.WithLabelValues(sheet, result).Inc()
}
