package repository

import (
	"context"

	"track-billing/internal/domain/model"
)

// UsageRepository stores metered counters. Increment must be atomic at the
// store level: concurrent callers on the same key never lose an update.
type UsageRepository interface {
	// Ensure creates the ledger for u.SubscriptionID unless one exists and
	// returns the stored ledger either way.
	Ensure(ctx context.Context, u *model.UsageTracking) (*model.UsageTracking, error)
	FindBySubscription(ctx context.Context, subscriptionID string) (*model.UsageTracking, error)

	Increment(ctx context.Context, subscriptionID string, kind model.UsageKind, unitID, periodKey string) (int, error)
	Count(ctx context.Context, subscriptionID string, kind model.UsageKind, unitID, periodKey string) (int, error)

	IncTracksSaved(ctx context.Context, subscriptionID string) (int, error)
	ResetTracksSaved(ctx context.Context, subscriptionID string) error
}
