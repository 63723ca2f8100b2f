package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsActive,
		subscriptionsResolvedTotal,
		usageRecordedTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions deactivated by the expiry worker.",
		},
	)

	subscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Current number of active subscriptions.",
		},
	)

	subscriptionsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_resolved_total",
			Help: "Payments resolved to a subscription, labeled by outcome.",
		},
		[]string{"outcome"}, // 'created', 'renewed', 'linked', 'race_recovered'
	)

	usageRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_recorded_total",
			Help: "Metered actions, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"}, // outcome: 'counted', 'limited'
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func SetSubscriptionsActive(n int) {
	subscriptionsActive.Set(float64(n))
}

func IncSubscriptionResolved(outcome string) {
	subscriptionsResolvedTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncUsage(kind, outcome string) {
	usageRecordedTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}
