package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		orderRecoveriesTotal,
		gatewayCallDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (initiated/completed/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	orderRecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_recoveries_total",
			Help: "Create-order conflicts recovered locally, labeled by path.",
		},
		[]string{"path"}, // 'duplicate_intent', 'orphan_sweep', 'exhausted'
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_duration_seconds",
			Help:    "Latency of payment gateway calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "success"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncOrderRecovery(path string) {
	orderRecoveriesTotal.WithLabelValues(norm(path)).Inc()
}

func ObserveGatewayCall(provider string, success bool, seconds float64) {
	s := "false"
	if success {
		s = "true"
	}
	gatewayCallDuration.WithLabelValues(norm(provider), s).Observe(seconds)
}
