package repository

import (
	"context"
	"time"

	"track-billing/internal/domain/model"
)

// PaymentRepository persists payments. Create returns *domain.ConflictError
// when a uniqueness constraint fires; the conditional updates report whether
// they changed a row so callers can detect lost races without locking.
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, orderID string) (*model.Payment, error)

	// MarkCompleted moves a pending payment to completed.
	MarkCompleted(ctx context.Context, id, gatewayPaymentID, signature string, tier model.Tier, completedAt time.Time) (bool, error)
	// MarkFailed moves a pending payment to failed.
	MarkFailed(ctx context.Context, id string) (bool, error)
	// SetTrackIfEmpty links the payment to a track once; false when it already had one.
	SetTrackIfEmpty(ctx context.Context, id, trackID string) (bool, error)
	UpdateTier(ctx context.Context, id string, tier model.Tier) error
	// MarkApplied records the subscription a completed payment funded. It is
	// a no-op when the payment was already applied.
	MarkApplied(ctx context.Context, id, subscriptionID string, at time.Time) error

	// DeleteOrphanedPending removes pending payments created before olderThan
	// that never got a gateway order id. An empty userID sweeps every user.
	DeleteOrphanedPending(ctx context.Context, userID string, olderThan time.Time) (int, error)
}
