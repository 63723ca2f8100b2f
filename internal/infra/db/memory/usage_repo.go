package memory

import (
	"context"
	"sync"
	"time"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*UsageRepo)(nil)

type UsageRepo struct {
	mu    sync.Mutex
	bySub map[string]*model.UsageTracking
}

func NewUsageRepo() *UsageRepo {
	return &UsageRepo{bySub: make(map[string]*model.UsageTracking)}
}

func cloneCounters(in map[string]map[string]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(in))
	for unit, periods := range in {
		cp := make(map[string]int, len(periods))
		for k, v := range periods {
			cp[k] = v
		}
		out[unit] = cp
	}
	return out
}

func cloneUsage(u *model.UsageTracking) *model.UsageTracking {
	cp := *u
	cp.Daily = cloneCounters(u.Daily)
	cp.Monthly = cloneCounters(u.Monthly)
	return &cp
}

func (r *UsageRepo) Ensure(ctx context.Context, u *model.UsageTracking) (*model.UsageTracking, error) {
	if u == nil || u.SubscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.bySub[u.SubscriptionID]; ok {
		return cloneUsage(existing), nil
	}
	stored := cloneUsage(u)
	r.bySub[u.SubscriptionID] = stored
	return cloneUsage(stored), nil
}

func (r *UsageRepo) FindBySubscription(ctx context.Context, subscriptionID string) (*model.UsageTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.bySub[subscriptionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUsage(u), nil
}

func (r *UsageRepo) Increment(ctx context.Context, subscriptionID string, kind model.UsageKind, unitID, periodKey string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.bySub[subscriptionID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	m := u.Daily
	if kind == model.UsageMonthly {
		m = u.Monthly
	}
	if m[unitID] == nil {
		m[unitID] = make(map[string]int)
	}
	m[unitID][periodKey]++
	u.UpdatedAt = time.Now()
	return m[unitID][periodKey], nil
}

func (r *UsageRepo) Count(ctx context.Context, subscriptionID string, kind model.UsageKind, unitID, periodKey string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.bySub[subscriptionID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return u.Count(kind, unitID, periodKey), nil
}

func (r *UsageRepo) IncTracksSaved(ctx context.Context, subscriptionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.bySub[subscriptionID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	u.TracksSaved++
	u.UpdatedAt = time.Now()
	return u.TracksSaved, nil
}

func (r *UsageRepo) ResetTracksSaved(ctx context.Context, subscriptionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.bySub[subscriptionID]
	if !ok {
		return domain.ErrNotFound
	}
	u.TracksSaved = 0
	u.UpdatedAt = time.Now()
	return nil
}
