// File: internal/usecase/usage_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
	"track-billing/internal/infra/metrics"
)

// Compile-time check
var _ UsageUseCase = (*usageUC)(nil)

type UsageUseCase interface {
	// RecordUsage counts one metered action and returns the new count for
	// the current period.
	RecordUsage(ctx context.Context, subscriptionID, unitID string, kind model.UsageKind) (int, error)
	// Remaining is max(0, limit - count) for the current period.
	Remaining(ctx context.Context, subscriptionID, unitID string, kind model.UsageKind) (int, error)
	RecordTrackSaved(ctx context.Context, subscriptionID string) (int, error)
	// Authorize fails with ErrNotFound unless userID owns the subscription.
	Authorize(ctx context.Context, userID, subscriptionID string) error
}

type usageUC struct {
	subs  repository.SubscriptionRepository
	usage repository.UsageRepository
	now   Clock
	log   *zerolog.Logger
}

func NewUsageUseCase(subs repository.SubscriptionRepository, usage repository.UsageRepository, logger *zerolog.Logger) *usageUC {
	l := logger.With().Str("component", "UsageUC").Logger()
	return &usageUC{subs: subs, usage: usage, now: time.Now, log: &l}
}

// WithClock replaces the time source.
func (u *usageUC) WithClock(c Clock) *usageUC {
	u.now = c
	return u
}

// liveSubscription loads the subscription; limits are always read fresh so
// an upgrade applies on the next call.
func (u *usageUC) liveSubscription(ctx context.Context, subscriptionID string, now time.Time) (*model.Subscription, error) {
	if subscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	s, err := u.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !s.IsLive(now) {
		return nil, domain.ErrNoActiveSubscription
	}
	return s, nil
}

func (u *usageUC) count(ctx context.Context, subscriptionID, unitID string, kind model.UsageKind, key string) (int, error) {
	n, err := u.usage.Count(ctx, subscriptionID, kind, unitID, key)
	if isNotFound(err) {
		return 0, nil
	}
	return n, err
}

func (u *usageUC) RecordUsage(ctx context.Context, subscriptionID, unitID string, kind model.UsageKind) (int, error) {
	if unitID == "" {
		return 0, domain.ErrInvalidArgument
	}
	if _, err := model.ParseUsageKind(string(kind)); err != nil {
		return 0, err
	}
	now := u.now()
	s, err := u.liveSubscription(ctx, subscriptionID, now)
	if err != nil {
		return 0, err
	}
	key := kind.PeriodKey(now)

	// The gate is a pre-check; the increment itself is atomic in the store.
	n, err := u.count(ctx, subscriptionID, unitID, kind, key)
	if err != nil {
		return 0, err
	}
	if n >= s.Limit(kind) {
		metrics.IncUsage(string(kind), "limited")
		return n, domain.ErrUsageLimitReached
	}

	n, err = u.usage.Increment(ctx, subscriptionID, kind, unitID, key)
	if isNotFound(err) {
		if err := u.ensure(ctx, s); err != nil {
			return 0, err
		}
		n, err = u.usage.Increment(ctx, subscriptionID, kind, unitID, key)
	}
	if err != nil {
		return 0, err
	}
	metrics.IncUsage(string(kind), "counted")
	return n, nil
}

func (u *usageUC) Remaining(ctx context.Context, subscriptionID, unitID string, kind model.UsageKind) (int, error) {
	if _, err := model.ParseUsageKind(string(kind)); err != nil {
		return 0, err
	}
	now := u.now()
	s, err := u.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}
	if !s.IsLive(now) {
		return 0, nil
	}
	n, err := u.count(ctx, subscriptionID, unitID, kind, kind.PeriodKey(now))
	if err != nil {
		return 0, err
	}
	if left := s.Limit(kind) - n; left > 0 {
		return left, nil
	}
	return 0, nil
}

func (u *usageUC) RecordTrackSaved(ctx context.Context, subscriptionID string) (int, error) {
	s, err := u.liveSubscription(ctx, subscriptionID, u.now())
	if err != nil {
		return 0, err
	}
	n, err := u.usage.IncTracksSaved(ctx, subscriptionID)
	if isNotFound(err) {
		if err := u.ensure(ctx, s); err != nil {
			return 0, err
		}
		n, err = u.usage.IncTracksSaved(ctx, subscriptionID)
	}
	if err != nil {
		return 0, err
	}
	// The ledger is authoritative; the subscription keeps a mirror. The
	// mirror is bumped in place so a renewal written meanwhile survives.
	if _, err := u.subs.IncTracksSaved(ctx, s.ID, u.now()); err != nil {
		u.log.Warn().Err(err).Str("subscription_id", s.ID).Msg("mirror tracks saved")
	}
	return n, nil
}

func (u *usageUC) Authorize(ctx context.Context, userID, subscriptionID string) error {
	if userID == "" || subscriptionID == "" {
		return domain.ErrInvalidArgument
	}
	s, err := u.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if s.UserID != userID {
		return domain.ErrNotFound
	}
	return nil
}

func (u *usageUC) ensure(ctx context.Context, s *model.Subscription) error {
	ut, err := model.NewUsageTracking(uuid.NewString(), s)
	if err != nil {
		return err
	}
	_, err = u.usage.Ensure(ctx, ut)
	return err
}
