//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
)

func TestUsageUseCase_RecordUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("stops at the tier limit and resets next period", func(t *testing.T) {
		e := newEngine(t)
		_, s := e.buy(t, "user-1", model.TierBasic, "track-a")

		for want := 1; want <= 3; want++ {
			got, err := e.meter.RecordUsage(ctx, s.ID, "chapter-1", model.UsageDaily)
			if err != nil || got != want {
				t.Fatalf("call %d: got %d, %v", want, got, err)
			}
		}
		if _, err := e.meter.RecordUsage(ctx, s.ID, "chapter-1", model.UsageDaily); !errors.Is(err, domain.ErrUsageLimitReached) {
			t.Fatalf("expected ErrUsageLimitReached, got %v", err)
		}
		if left, _ := e.meter.Remaining(ctx, s.ID, "chapter-1", model.UsageDaily); left != 0 {
			t.Errorf("expected 0 remaining, got %d", left)
		}

		// Other units and kinds are metered separately.
		if left, _ := e.meter.Remaining(ctx, s.ID, "chapter-2", model.UsageDaily); left != 3 {
			t.Errorf("expected chapter-2 untouched, got %d", left)
		}
		if left, _ := e.meter.Remaining(ctx, s.ID, "chapter-1", model.UsageMonthly); left != 3 {
			t.Errorf("expected monthly untouched, got %d", left)
		}

		e.clock.Advance(24 * time.Hour)
		if got, err := e.meter.RecordUsage(ctx, s.ID, "chapter-1", model.UsageDaily); err != nil || got != 1 {
			t.Errorf("expected a fresh day, got %d, %v", got, err)
		}
	})

	t.Run("counters are isolated per subscription", func(t *testing.T) {
		e := newEngine(t)
		_, a := e.buy(t, "user-1", model.TierBasic, "track-a")
		_, b := e.buy(t, "user-1", model.TierBasic, "track-b")

		for i := 0; i < 3; i++ {
			if _, err := e.meter.RecordUsage(ctx, a.ID, "unit", model.UsageMonthly); err != nil {
				t.Fatalf("record on a: %v", err)
			}
		}
		if left, _ := e.meter.Remaining(ctx, b.ID, "unit", model.UsageMonthly); left != 3 {
			t.Errorf("usage on track-a leaked into track-b: %d remaining", left)
		}
	})

	t.Run("premium limits apply after an upgrade", func(t *testing.T) {
		e := newEngine(t)
		_, s := e.buy(t, "user-1", model.TierBasic, "track-a")
		for i := 0; i < 3; i++ {
			e.meter.RecordUsage(ctx, s.ID, "unit", model.UsageDaily)
		}
		e.buy(t, "user-1", model.TierPremium, "track-a")

		left, err := e.meter.Remaining(ctx, s.ID, "unit", model.UsageDaily)
		if err != nil || left != 7 {
			t.Errorf("expected 7 remaining on premium, got %d, %v", left, err)
		}
	})

	t.Run("an expired window cannot record usage", func(t *testing.T) {
		e := newEngine(t)
		_, s := e.buy(t, "user-1", model.TierBasic, "track-a")
		e.clock.Advance(model.DefaultPeriod)

		if _, err := e.meter.RecordUsage(ctx, s.ID, "unit", model.UsageDaily); !errors.Is(err, domain.ErrNoActiveSubscription) {
			t.Errorf("expected ErrNoActiveSubscription, got %v", err)
		}
		if left, err := e.meter.Remaining(ctx, s.ID, "unit", model.UsageDaily); err != nil || left != 0 {
			t.Errorf("expected 0 remaining, got %d, %v", left, err)
		}
	})

	t.Run("a missing ledger is created on first use", func(t *testing.T) {
		e := newEngine(t)
		now := e.clock.Now()
		s := e.seedSubscription(t, "sub-1", "user-1", "track-a", model.TierBasic, now, now.Add(model.DefaultPeriod))

		got, err := e.meter.RecordUsage(ctx, s.ID, "unit", model.UsageDaily)
		if err != nil || got != 1 {
			t.Fatalf("expected first count, got %d, %v", got, err)
		}
	})

	t.Run("bad input is rejected", func(t *testing.T) {
		e := newEngine(t)
		_, s := e.buy(t, "user-1", model.TierBasic, "track-a")

		if _, err := e.meter.RecordUsage(ctx, s.ID, "unit", "weekly"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("kind: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := e.meter.RecordUsage(ctx, s.ID, "", model.UsageDaily); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("unit: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := e.meter.RecordUsage(ctx, "missing", "unit", model.UsageDaily); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("subscription: expected ErrNotFound, got %v", err)
		}
	})
}

func TestUsageUseCase_RecordTrackSaved(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, s := e.buy(t, "user-1", model.TierBasic, "track-a")

	for want := 1; want <= 2; want++ {
		got, err := e.meter.RecordTrackSaved(ctx, s.ID)
		if err != nil || got != want {
			t.Fatalf("save %d: got %d, %v", want, got, err)
		}
	}
	stored, _ := e.subs.FindByID(ctx, s.ID)
	if stored.TracksSaved != 2 {
		t.Errorf("expected mirror of 2, got %d", stored.TracksSaved)
	}

	// Renewal starts the saved count over.
	e.buy(t, "user-1", model.TierBasic, "track-a")
	ledger, _ := e.usage.FindBySubscription(ctx, s.ID)
	if ledger.TracksSaved != 0 {
		t.Errorf("expected saved count reset on renewal, got %d", ledger.TracksSaved)
	}
}

func TestUsageUseCase_RecordTrackSavedKeepsConcurrentRenewal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, s := e.buy(t, "user-1", model.TierBasic, "track-a")
	var renewal *model.Payment
	e.subs.AfterFindByID = func(ctx context.Context, read *model.Subscription) {
		renewal, _ = e.buy(t, "user-1", model.TierPremium, "track-a")
	}

	got, err := e.meter.RecordTrackSaved(ctx, s.ID)
	if err != nil || got != 1 {
		t.Fatalf("expected 1 saved, got %d, %v", got, err)
	}
	if renewal == nil {
		t.Fatal("renewal did not run")
	}

	stored, _ := e.subs.FindByID(ctx, s.ID)
	if want := s.ExpiresAt.Add(model.DefaultPeriod); !stored.ExpiresAt.Equal(want) {
		t.Errorf("renewal lost: expected expiry %v, got %v", want, stored.ExpiresAt)
	}
	if stored.Tier != model.TierPremium || stored.PaymentID != renewal.ID {
		t.Errorf("renewal reverted: %+v", stored)
	}
	if stored.TracksSaved != 1 {
		t.Errorf("expected mirror of 1, got %d", stored.TracksSaved)
	}
}

func TestUsageUseCase_Authorize(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, s := e.buy(t, "user-1", model.TierBasic, "track-a")

	if err := e.meter.Authorize(ctx, "user-1", s.ID); err != nil {
		t.Errorf("owner should be authorized, got %v", err)
	}
	if err := e.meter.Authorize(ctx, "user-2", s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
}
