//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	red "track-billing/internal/infra/redis"
)

func TestSubscriptionRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	track := "track-1"
	sub := &model.Subscription{ID: "sub-1", UserID: "user-1", TrackID: &track, Active: true, ExpiresAt: time.Now().Add(time.Hour)}
	subJSON, _ := json.Marshal(sub)

	t.Run("should return from cache on hit", func(t *testing.T) {
		// --- Arrange ---
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "sub:active:user-1:track-1" {
					t.Errorf("unexpected cache key %q", key)
				}
				return string(subJSON), nil
			},
		}
		innerCalled := false
		inner := &mockInnerSubscriptionRepo{
			FindActiveByUserAndTrackFunc: func(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
				innerCalled = true
				return nil, nil
			},
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		got, err := decorator.FindActiveByUserAndTrack(ctx, "user-1", "track-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if got == nil || got.ID != "sub-1" || got.TrackOrEmpty() != "track-1" {
			t.Errorf("unexpected subscription from cache: %+v", got)
		}
	})

	t.Run("should fill cache on miss", func(t *testing.T) {
		// --- Arrange ---
		var stored string
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				stored = key
				return nil
			},
		}
		inner := &mockInnerSubscriptionRepo{
			FindActiveByUserAndTrackFunc: func(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
				return sub, nil
			},
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		got, err := decorator.FindActiveByUserAndTrack(ctx, "user-1", "track-1")

		// --- Assert ---
		if err != nil || got.ID != "sub-1" {
			t.Fatalf("unexpected result %+v, %v", got, err)
		}
		if stored != "sub:active:user-1:track-1" {
			t.Errorf("expected cache fill, got key %q", stored)
		}
	})

	t.Run("should not cache not found", func(t *testing.T) {
		// --- Arrange ---
		setCalled := false
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setCalled = true
				return nil
			},
		}
		inner := &mockInnerSubscriptionRepo{
			FindActiveByUserAndTrackFunc: func(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
				return nil, domain.ErrNotFound
			},
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		_, err := decorator.FindActiveByUserAndTrack(ctx, "user-1", "track-1")

		// --- Assert ---
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if setCalled {
			t.Error("a miss must not be cached")
		}
	})

	t.Run("Update should invalidate the track key", func(t *testing.T) {
		// --- Arrange ---
		var deleted []string
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", red.Nil },
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		inner := &mockInnerSubscriptionRepo{
			UpdateFunc: func(ctx context.Context, s *model.Subscription) error { return nil },
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		err := decorator.Update(ctx, sub)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) == 0 || deleted[0] != "sub:active:user-1:track-1" {
			t.Errorf("expected track key invalidation, got %v", deleted)
		}
	})

	t.Run("Create of a temporary subscription should not touch the cache", func(t *testing.T) {
		// --- Arrange ---
		delCalled := false
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				delCalled = true
				return nil
			},
		}
		inner := &mockInnerSubscriptionRepo{
			CreateFunc: func(ctx context.Context, s *model.Subscription) error { return nil },
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		err := decorator.Create(ctx, &model.Subscription{ID: "tmp", UserID: "user-1"})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if delCalled {
			t.Error("temporary subscriptions are never cached")
		}
	})

	t.Run("should drop a cached entry whose window has ended", func(t *testing.T) {
		// --- Arrange ---
		ended := &model.Subscription{ID: "sub-old", UserID: "user-1", TrackID: &track, Active: true, ExpiresAt: time.Now().Add(-time.Minute)}
		endedJSON, _ := json.Marshal(ended)
		renewed := &model.Subscription{ID: "sub-new", UserID: "user-1", TrackID: &track, Active: true, ExpiresAt: time.Now().Add(time.Hour)}
		var deleted []string
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return string(endedJSON), nil },
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		inner := &mockInnerSubscriptionRepo{
			FindActiveByUserAndTrackFunc: func(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
				return renewed, nil
			},
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		got, err := decorator.FindActiveByUserAndTrack(ctx, "user-1", "track-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID != "sub-new" {
			t.Errorf("expected the store's row, got %s", got.ID)
		}
		if len(deleted) != 1 || deleted[0] != "sub:active:user-1:track-1" {
			t.Errorf("expected the ended entry to be dropped, got %v", deleted)
		}
	})

	t.Run("should drop a cached entry that was deactivated", func(t *testing.T) {
		// --- Arrange ---
		inactive := &model.Subscription{ID: "sub-1", UserID: "user-1", TrackID: &track, Active: false, ExpiresAt: time.Now().Add(time.Hour)}
		inactiveJSON, _ := json.Marshal(inactive)
		innerCalled := false
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return string(inactiveJSON), nil },
		}
		inner := &mockInnerSubscriptionRepo{
			FindActiveByUserAndTrackFunc: func(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
				innerCalled = true
				return nil, domain.ErrNotFound
			},
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		_, err := decorator.FindActiveByUserAndTrack(ctx, "user-1", "track-1")

		// --- Assert ---
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if !innerCalled {
			t.Error("an inactive cached entry must fall through to the store")
		}
	})

	t.Run("IncTracksSaved should invalidate the returned row's key", func(t *testing.T) {
		// --- Arrange ---
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		inner := &mockInnerSubscriptionRepo{
			IncTracksSavedFunc: func(ctx context.Context, id string, at time.Time) (*model.Subscription, error) {
				return sub, nil
			},
		}
		decorator := NewSubscriptionRepoCacheDecorator(inner, mockRedis, time.Minute)

		// --- Act ---
		_, err := decorator.IncTracksSaved(ctx, "sub-1", time.Now())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) != 1 || deleted[0] != "sub:active:user-1:track-1" {
			t.Errorf("expected track key invalidation, got %v", deleted)
		}
	})
}
