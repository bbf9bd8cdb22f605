package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweeperPaymentsTotal) }

var sweeperPaymentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_sweeper_processed_total",
		Help: "Stale pending payments examined by the sweeper, labeled by outcome.",
	},
	[]string{"outcome"}, // 'succeeded', 'failed', 'canceled', 'abandoned', 'still_pending', 'error'
)

func IncSweeper(outcome string) {
	sweeperPaymentsTotal.WithLabelValues(norm(outcome)).Inc()
}
