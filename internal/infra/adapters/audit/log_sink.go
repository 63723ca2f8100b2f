// Package audit holds the sinks that receive payment and subscription
// state transitions.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.AuditSink = (*LogSink)(nil)

// LogSink writes every event as one structured log line.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	l := logger.With().Str("component", "Audit").Logger()
	return &LogSink{log: &l}
}

func (s *LogSink) Publish(ctx context.Context, ev adapter.AuditEvent) error {
	e := s.log.Info().
		Str("event", string(ev.Type)).
		Str("user_id", ev.UserID).
		Time("at", ev.At)
	if ev.PaymentID != "" {
		e = e.Str("payment_id", ev.PaymentID)
	}
	if ev.SubscriptionID != "" {
		e = e.Str("subscription_id", ev.SubscriptionID)
	}
	if ev.TrackID != "" {
		e = e.Str("track_id", ev.TrackID)
	}
	if ev.Amount > 0 {
		e = e.Int64("amount", ev.Amount)
	}
	if ev.Count > 0 {
		e = e.Int("count", ev.Count)
	}
	e.Msg("audit")
	return nil
}

// MultiSink fans an event out to several sinks and returns the first error.
type MultiSink []adapter.AuditSink

func (m MultiSink) Publish(ctx context.Context, ev adapter.AuditEvent) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
