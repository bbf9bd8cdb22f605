package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentTransitionsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (pending/succeeded/failed/cancelled) and flow.",
		},
		[]string{"status", "flow"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	// result: applied|noop
	// source: webhook|confirm|cancel|sweeper
	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Conditional status updates by source, target status and whether the row changed.",
		},
		[]string{"source", "status", "result"},
	)
)

func IncPayment(status, flow string) {
	paymentsTotal.WithLabelValues(norm(status), norm(flow)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncTransition(source, status string, applied bool) {
	result := "noop"
	if applied {
		result = "applied"
	}
	paymentTransitionsTotal.WithLabelValues(norm(source), norm(status), result).Inc()
}
