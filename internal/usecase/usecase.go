// Package usecase holds the billing engine: order intents, payment
// verification, subscription resolution, access and usage.
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/domain"
	"track-billing/internal/domain/ports/adapter"
)

// Clock returns the current time. Tests replace it to move through periods.
type Clock func() time.Time

// RateLimiter bounds how often a key may act within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// publish hands ev to the sink. Sink errors are logged and swallowed so a
// notification failure never undoes the write that produced it.
func publish(ctx context.Context, sink adapter.AuditSink, log *zerolog.Logger, ev adapter.AuditEvent) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Msg("audit publish failed")
	}
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
