// Package memory is an in-process ledger store. It enforces the same
// uniqueness rules as the Postgres schema and is used in dev mode and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct {
	mu   sync.RWMutex
	byID map[string]*model.Payment
}

func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{byID: make(map[string]*model.Payment)}
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	if p.TrackID != nil {
		t := *p.TrackID
		cp.TrackID = &t
	}
	if p.CompletedAt != nil {
		c := *p.CompletedAt
		cp.CompletedAt = &c
	}
	if p.AppliedAt != nil {
		a := *p.AppliedAt
		cp.AppliedAt = &a
	}
	return &cp
}

func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return &domain.ConflictError{Constraint: "payments_pkey"}
	}
	for _, e := range r.byID {
		if p.GatewayOrderID != "" && e.GatewayOrderID == p.GatewayOrderID {
			return &domain.ConflictError{Constraint: "payments_gateway_order_id_key"}
		}
		if p.Receipt != "" && e.Receipt == p.Receipt {
			return &domain.ConflictError{Constraint: "payments_receipt_key"}
		}
	}
	r.byID[p.ID] = clonePayment(p)
	return nil
}

// Put stores p without constraint checks. Tests use it to seed legacy rows.
func (r *PaymentRepo) Put(p *model.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = clonePayment(p)
}

func (r *PaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (r *PaymentRepo) FindByGatewayOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	if orderID == "" {
		return nil, domain.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		if p.GatewayOrderID == orderID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *PaymentRepo) MarkCompleted(ctx context.Context, id, gatewayPaymentID, signature string, tier model.Tier, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	at := completedAt
	p.Status = model.PaymentStatusCompleted
	p.GatewayPaymentID = gatewayPaymentID
	p.GatewaySignature = signature
	p.Tier = tier
	p.CompletedAt = &at
	p.UpdatedAt = completedAt
	return true, nil
}

func (r *PaymentRepo) MarkFailed(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *PaymentRepo) SetTrackIfEmpty(ctx context.Context, id, trackID string) (bool, error) {
	if trackID == "" {
		return false, domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.HasTrack() {
		return false, nil
	}
	t := trackID
	p.TrackID = &t
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *PaymentRepo) UpdateTier(ctx context.Context, id string, tier model.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Tier = tier
	p.UpdatedAt = time.Now()
	return nil
}

func (r *PaymentRepo) MarkApplied(ctx context.Context, id, subscriptionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.AppliedAt != nil {
		return nil
	}
	applied := at
	p.SubscriptionID = subscriptionID
	p.AppliedAt = &applied
	p.UpdatedAt = at
	return nil
}

func (r *PaymentRepo) DeleteOrphanedPending(ctx context.Context, userID string, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, p := range r.byID {
		if userID != "" && p.UserID != userID {
			continue
		}
		if p.Status == model.PaymentStatusPending && p.GatewayOrderID == "" && p.CreatedAt.Before(olderThan) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored payments.
func (r *PaymentRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
