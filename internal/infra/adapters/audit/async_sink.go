package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/infra/metrics"
	"track-billing/internal/infra/worker"
)

var _ adapter.AuditSink = (*AsyncSink)(nil)

// AsyncSink hands events to a worker pool and returns immediately. Publish
// never fails: a full queue drops the event.
type AsyncSink struct {
	inner   adapter.AuditSink
	pool    *worker.Pool
	timeout time.Duration
	log     *zerolog.Logger
}

func NewAsyncSink(inner adapter.AuditSink, pool *worker.Pool, logger *zerolog.Logger) *AsyncSink {
	l := logger.With().Str("component", "AsyncAudit").Logger()
	return &AsyncSink{inner: inner, pool: pool, timeout: 10 * time.Second, log: &l}
}

func (s *AsyncSink) Publish(_ context.Context, ev adapter.AuditEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	err := s.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.inner.Publish(ctx, ev); err != nil {
			metrics.IncAuditEvent(string(ev.Type), "error")
			return err
		}
		metrics.IncAuditEvent(string(ev.Type), "sent")
		return nil
	})
	if err != nil {
		metrics.IncAuditEvent(string(ev.Type), "dropped")
		s.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("audit event dropped")
	}
	return nil
}
