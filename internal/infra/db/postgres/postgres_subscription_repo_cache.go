package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
	"track-billing/internal/infra/metrics"
	red "track-billing/internal/infra/redis"
)

var _ repository.SubscriptionRepository = (*subscriptionRepoCacheDecorator)(nil)

// subscriptionRepoCacheDecorator caches the active (user, track) lookup that
// backs every access check. Only hits are cached, and an entry whose window
// has ended is dropped on read so the sweep never needs to invalidate.
type subscriptionRepoCacheDecorator struct {
	repository.SubscriptionRepository
	cache red.RedisClient
	ttl   time.Duration
	now   func() time.Time
}

func NewSubscriptionRepoCacheDecorator(inner repository.SubscriptionRepository, cache red.RedisClient, ttl time.Duration) repository.SubscriptionRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &subscriptionRepoCacheDecorator{
		SubscriptionRepository: inner,
		cache:                  cache,
		ttl:                    ttl,
		now:                    time.Now,
	}
}

func activeSubKey(userID, trackID string) string {
	return fmt.Sprintf("sub:active:%s:%s", userID, trackID)
}

func (d *subscriptionRepoCacheDecorator) FindActiveByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
	key := activeSubKey(userID, trackID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var s model.Subscription
		if json.Unmarshal([]byte(val), &s) == nil {
			if s.IsLive(d.now()) {
				metrics.IncCacheRequest("subscription", "hit")
				return &s, nil
			}
			_ = d.cache.Del(ctx, key)
		}
	} else if !errors.Is(err, red.Nil) {
		metrics.IncCacheRequest("subscription", "error")
	}

	metrics.IncCacheRequest("subscription", "miss")
	s, err := d.SubscriptionRepository.FindActiveByUserAndTrack(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(s); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return s, nil
}

// Writes invalidate before delegating so a failed write never leaves a
// fresher cache entry than the store.
func (d *subscriptionRepoCacheDecorator) Create(ctx context.Context, s *model.Subscription) error {
	d.invalidate(ctx, s)
	return d.SubscriptionRepository.Create(ctx, s)
}

func (d *subscriptionRepoCacheDecorator) Update(ctx context.Context, s *model.Subscription) error {
	d.invalidate(ctx, s)
	err := d.SubscriptionRepository.Update(ctx, s)
	d.invalidate(ctx, s)
	return err
}

func (d *subscriptionRepoCacheDecorator) IncTracksSaved(ctx context.Context, id string, at time.Time) (*model.Subscription, error) {
	s, err := d.SubscriptionRepository.IncTracksSaved(ctx, id, at)
	if err == nil {
		d.invalidate(ctx, s)
	}
	return s, err
}

func (d *subscriptionRepoCacheDecorator) invalidate(ctx context.Context, s *model.Subscription) {
	if s == nil || s.IsTemporary() {
		return
	}
	_ = d.cache.Del(ctx, activeSubKey(s.UserID, s.TrackOrEmpty()))
}
