package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(processorCallDuration) }

var processorCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "payment_processor_call_duration_seconds",
		Help:    "Latency of payment processor API calls by operation and outcome.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"provider", "op", "success"},
)

// ObserveProcessorCall records one processor call started at start.
func ObserveProcessorCall(provider, op string, start time.Time, err error) {
	processorCallDuration.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(err == nil)).
		Observe(time.Since(start).Seconds())
}
