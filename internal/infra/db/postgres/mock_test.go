//go:build !integration

package postgres

import (
	"context"
	"time"

	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
	red "track-billing/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerSubscriptionRepo embeds the port so tests only stub what they use.
type mockInnerSubscriptionRepo struct {
	repository.SubscriptionRepository
	CreateFunc                   func(ctx context.Context, s *model.Subscription) error
	UpdateFunc                   func(ctx context.Context, s *model.Subscription) error
	FindActiveByUserAndTrackFunc func(ctx context.Context, userID, trackID string) (*model.Subscription, error)
	IncTracksSavedFunc           func(ctx context.Context, id string, at time.Time) (*model.Subscription, error)
}

func (m *mockInnerSubscriptionRepo) Create(ctx context.Context, s *model.Subscription) error {
	return m.CreateFunc(ctx, s)
}
func (m *mockInnerSubscriptionRepo) Update(ctx context.Context, s *model.Subscription) error {
	return m.UpdateFunc(ctx, s)
}
func (m *mockInnerSubscriptionRepo) FindActiveByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
	return m.FindActiveByUserAndTrackFunc(ctx, userID, trackID)
}

func (m *mockInnerSubscriptionRepo) IncTracksSaved(ctx context.Context, id string, at time.Time) (*model.Subscription, error) {
	return m.IncTracksSavedFunc(ctx, id, at)
}

// mockRedisClient mocks the Redis client.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", red.Nil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}
func (m *mockRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return int64(1), nil
}
func (m *mockRedisClient) Close() error { return nil }
