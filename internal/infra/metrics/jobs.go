package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal, auditEventsTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Runs of periodic jobs, labeled by job and outcome.",
		},
		[]string{"job", "status"}, // status: 'ok', 'error', 'skipped'
	)

	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Audit events handed to sinks, labeled by delivery status.",
		},
		[]string{"type", "status"}, // status: 'sent', 'error', 'dropped'
	)
)

func IncJobRun(job, status string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}

func IncAuditEvent(eventType, status string) {
	auditEventsTotal.WithLabelValues(norm(eventType), norm(status)).Inc()
}
