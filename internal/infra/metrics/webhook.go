package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookEventsTotal,
		WebhookDuration,
	)
}

var (
	// kind: processor event type, or "unknown" for ignored kinds.
	// result: ok|ignored|bad_signature|not_found|error
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Webhook deliveries by event kind and handling result.",
		},
		[]string{"kind", "result"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of webhook handling in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func IncWebhook(kind, result string) {
	WebhookEventsTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}
