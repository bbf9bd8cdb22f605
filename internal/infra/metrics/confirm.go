package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentConfirmRequests,
		PaymentConfirmDuration,
	)
}

var (
	// Count of confirm calls grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): bad_json|missing_reference|not_found|mismatch|processor|persistence|unknown
	PaymentConfirmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirm_requests_total",
			Help: "Count of /api/v1/payments/confirm calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	PaymentConfirmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_confirm_duration_seconds",
			Help:    "Duration of /api/v1/payments/confirm handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)
