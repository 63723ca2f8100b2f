package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/infra/metrics"
	"track-billing/internal/usecase"
)

// NewExpiryWorker deactivates subscriptions whose window has ended.
func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, locker Locker, logger *zerolog.Logger) *Runner {
	return NewRunner("subscription_expiry", interval, func(ctx context.Context) (int, error) {
		n, err := subUC.FinishExpired(ctx)
		if n > 0 {
			metrics.IncSubscriptionsExpired(n)
		}
		return n, err
	}, locker, logger)
}

// NewOrphanSweeper deletes stale pending payments that never got a gateway order id.
func NewOrphanSweeper(interval time.Duration, orderUC usecase.OrderUseCase, locker Locker, logger *zerolog.Logger) *Runner {
	return NewRunner("orphan_sweep", interval, orderUC.SweepOrphans, locker, logger)
}
