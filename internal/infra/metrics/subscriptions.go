package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionUpgradesTotal,
		subscriptionStatusReads,
	)
}

var (
	// result: upgraded|already_premium|error
	subscriptionUpgradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_upgrades_total",
			Help: "Subscription upgrader invocations by result.",
		},
		[]string{"result"},
	)

	// active: true|false
	subscriptionStatusReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_status_reads_total",
			Help: "Subscription status projections served, by computed activity.",
		},
		[]string{"active"},
	)
)

func IncUpgrade(result string) {
	subscriptionUpgradesTotal.WithLabelValues(norm(result)).Inc()
}

func IncStatusRead(active bool) {
	label := "false"
	if active {
		label = "true"
	}
	subscriptionStatusReads.WithLabelValues(label).Inc()
}
