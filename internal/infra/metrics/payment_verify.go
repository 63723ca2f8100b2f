package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentVerifyRequests,
		PaymentVerifyDuration,
	)
}

var (
	// Count of verify calls grouped by result and bounded reason.
	// result: ok|fail
	// reason: completed|replay|signature_mismatch|not_found|already_failed|resolve_error|bad_request|unknown
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of payment verification calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of verification grouped by result.
	PaymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of payment verification in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func ObserveVerify(result, reason string, seconds float64) {
	PaymentVerifyRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	PaymentVerifyDuration.WithLabelValues(norm(result)).Observe(seconds)
}
