//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"

	"github.com/google/uuid"
)

func seedSubscription(t *testing.T, userID string, track *string, amount int64) *model.Subscription {
	t.Helper()
	ctx := context.Background()
	p := newTestPayment(t, userID, "order_"+uuid.NewString(), amount, track)
	if err := NewPaymentRepo(testPool).Create(ctx, p); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	s, err := model.NewSubscription(uuid.NewString(), p, time.Now())
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	if err := NewSubscriptionRepo(testPool).Create(ctx, s); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return s
}

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool)
	t1, t2 := "T1", "T2"

	t.Run("should enforce one active subscription per user and track", func(t *testing.T) {
		cleanup(t)
		first := seedSubscription(t, "user-1", &t1, 99)

		p := newTestPayment(t, "user-1", "order_x", 99, &t1)
		_ = NewPaymentRepo(testPool).Create(ctx, p)
		dup, _ := model.NewSubscription(uuid.NewString(), p, time.Now())
		err := repo.Create(ctx, dup)

		var ce *domain.ConflictError
		if !errors.As(err, &ce) || ce.Constraint != "subscriptions_active_user_track_key" {
			t.Fatalf("expected active index conflict, got %v", err)
		}

		got, err := repo.FindActiveByUserAndTrack(ctx, "user-1", "T1")
		if err != nil || got.ID != first.ID {
			t.Fatalf("expected first subscription, got %+v, %v", got, err)
		}
	})

	t.Run("should allow several temporary subscriptions", func(t *testing.T) {
		cleanup(t)
		seedSubscription(t, "user-1", nil, 199)
		second := seedSubscription(t, "user-1", nil, 199)

		got, err := repo.FindLatestActiveTemporary(ctx, "user-1")
		if err != nil {
			t.Fatalf("FindLatestActiveTemporary: %v", err)
		}
		if got.ID != second.ID {
			t.Errorf("expected newest temporary %s, got %s", second.ID, got.ID)
		}
	})

	t.Run("exact lookup should never return another track", func(t *testing.T) {
		cleanup(t)
		seedSubscription(t, "user-1", &t2, 99)

		_, err := repo.FindActiveByUserAndTrack(ctx, "user-1", "T1")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		latest, err := repo.FindLatestActiveByUser(ctx, "user-1")
		if err != nil || latest.TrackOrEmpty() != "T2" {
			t.Fatalf("expected T2 as latest active, got %+v, %v", latest, err)
		}
	})

	t.Run("DeactivateExpired should flip only lapsed windows", func(t *testing.T) {
		cleanup(t)
		live := seedSubscription(t, "user-1", &t1, 99)
		lapsed := seedSubscription(t, "user-2", &t1, 99)
		lapsed.ExpiresAt = time.Now().Add(-time.Minute)
		if err := repo.Update(ctx, lapsed); err != nil {
			t.Fatalf("Update: %v", err)
		}

		n, err := repo.DeactivateExpired(ctx, time.Now())
		if err != nil || n != 1 {
			t.Fatalf("expected 1 deactivated, got %d, %v", n, err)
		}
		got, _ := repo.FindByID(ctx, live.ID)
		if !got.Active {
			t.Error("live subscription must stay active")
		}
		count, _ := repo.CountActive(ctx)
		if count != 1 {
			t.Errorf("expected 1 active, got %d", count)
		}
	})

	t.Run("Update from a stale read should be refused", func(t *testing.T) {
		cleanup(t)
		seeded := seedSubscription(t, "user-1", &t1, 99)
		first, _ := repo.FindByID(ctx, seeded.ID)
		second, _ := repo.FindByID(ctx, seeded.ID)

		first.ExpiresAt = first.ExpiresAt.Add(time.Hour)
		if err := repo.Update(ctx, first); err != nil {
			t.Fatalf("Update: %v", err)
		}
		second.Tier = "premium"
		err := repo.Update(ctx, second)
		if !domain.IsStaleWrite(err) {
			t.Fatalf("expected stale write, got %v", err)
		}
		got, _ := repo.FindByID(ctx, seeded.ID)
		if !got.ExpiresAt.Equal(first.ExpiresAt) || got.Version != first.Version {
			t.Errorf("first write must stand, got %+v", got)
		}
	})

	t.Run("IncTracksSaved should keep a concurrent renewal", func(t *testing.T) {
		cleanup(t)
		seeded := seedSubscription(t, "user-1", &t1, 99)
		renewed, _ := repo.FindByID(ctx, seeded.ID)
		renewed.ExpiresAt = renewed.ExpiresAt.Add(model.DefaultPeriod)
		if err := repo.Update(ctx, renewed); err != nil {
			t.Fatalf("Update: %v", err)
		}

		got, err := repo.IncTracksSaved(ctx, seeded.ID, time.Now())
		if err != nil {
			t.Fatalf("IncTracksSaved: %v", err)
		}
		if got.TracksSaved != 1 || !got.ExpiresAt.Equal(renewed.ExpiresAt) {
			t.Errorf("expected count 1 and renewed expiry, got %+v", got)
		}
	})
}
