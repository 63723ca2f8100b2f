package memory

import (
	"context"
	"sync"
	"time"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)

type subRow struct {
	seq int64
	sub *model.Subscription
}

type SubscriptionRepo struct {
	mu   sync.RWMutex
	seq  int64
	rows map[string]*subRow
}

func NewSubscriptionRepo() *SubscriptionRepo {
	return &SubscriptionRepo{rows: make(map[string]*subRow)}
}

func cloneSub(s *model.Subscription) *model.Subscription {
	cp := *s
	if s.TrackID != nil {
		t := *s.TrackID
		cp.TrackID = &t
	}
	return &cp
}

// activeClash reports whether another active row holds the same (user, track).
// Caller holds the lock.
func (r *SubscriptionRepo) activeClash(s *model.Subscription) bool {
	if !s.Active || s.IsTemporary() {
		return false
	}
	for id, row := range r.rows {
		o := row.sub
		if id == s.ID || !o.Active || o.IsTemporary() {
			continue
		}
		if o.UserID == s.UserID && *o.TrackID == *s.TrackID {
			return true
		}
	}
	return false
}

func (r *SubscriptionRepo) Create(ctx context.Context, s *model.Subscription) error {
	if s == nil || s.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.ID]; ok {
		return &domain.ConflictError{Constraint: "subscriptions_pkey"}
	}
	if r.activeClash(s) {
		return &domain.ConflictError{Constraint: "subscriptions_active_user_track_key"}
	}
	r.seq++
	r.rows[s.ID] = &subRow{seq: r.seq, sub: cloneSub(s)}
	return nil
}

func (r *SubscriptionRepo) Update(ctx context.Context, s *model.Subscription) error {
	if s == nil || s.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.sub.Version != s.Version {
		return &domain.ConflictError{Constraint: domain.ConstraintVersion}
	}
	if r.activeClash(s) {
		return &domain.ConflictError{Constraint: "subscriptions_active_user_track_key"}
	}
	s.Version++
	row.sub = cloneSub(s)
	return nil
}

func (r *SubscriptionRepo) IncTracksSaved(ctx context.Context, id string, at time.Time) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	row.sub.TracksSaved++
	row.sub.Version++
	row.sub.UpdatedAt = at
	return cloneSub(row.sub), nil
}

func (r *SubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSub(row.sub), nil
}

// latest returns the newest row matching keep.
func (r *SubscriptionRepo) latest(keep func(s *model.Subscription) bool) (*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *subRow
	for _, row := range r.rows {
		if !keep(row.sub) {
			continue
		}
		if best == nil || row.sub.CreatedAt.After(best.sub.CreatedAt) ||
			(row.sub.CreatedAt.Equal(best.sub.CreatedAt) && row.seq > best.seq) {
			best = row
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return cloneSub(best.sub), nil
}

func (r *SubscriptionRepo) FindByPaymentID(ctx context.Context, paymentID string) (*model.Subscription, error) {
	return r.latest(func(s *model.Subscription) bool { return s.PaymentID == paymentID })
}

func (r *SubscriptionRepo) FindActiveByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
	return r.latest(func(s *model.Subscription) bool {
		return s.Active && s.UserID == userID && s.TrackOrEmpty() == trackID && trackID != ""
	})
}

func (r *SubscriptionRepo) FindLatestActiveTemporary(ctx context.Context, userID string) (*model.Subscription, error) {
	return r.latest(func(s *model.Subscription) bool {
		return s.Active && s.UserID == userID && s.IsTemporary()
	})
}

func (r *SubscriptionRepo) FindLatestActiveByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	return r.latest(func(s *model.Subscription) bool { return s.Active && s.UserID == userID })
}

func (r *SubscriptionRepo) FindLatestByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
	return r.latest(func(s *model.Subscription) bool {
		return s.UserID == userID && s.TrackOrEmpty() == trackID
	})
}

func (r *SubscriptionRepo) FindLatestByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	return r.latest(func(s *model.Subscription) bool { return s.UserID == userID })
}

func (r *SubscriptionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.sub.Active && row.sub.ExpiresAt.Before(now) {
			row.sub.Active = false
			row.sub.Version++
			row.sub.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *SubscriptionRepo) CountActive(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, row := range r.rows {
		if row.sub.Active {
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every stored subscription.
func (r *SubscriptionRepo) All() []*model.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Subscription, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, cloneSub(row.sub))
	}
	return out
}
