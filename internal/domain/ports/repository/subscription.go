package repository

import (
	"context"
	"time"

	"track-billing/internal/domain/model"
)

// SubscriptionRepository is the port for entitlement windows. Create and
// Update return *domain.ConflictError when the active (user, track) index fires.
type SubscriptionRepository interface {
	Create(ctx context.Context, s *model.Subscription) error
	// Update writes s only if the stored row still has s.Version, then bumps
	// s.Version. A lost check returns a ConflictError on domain.ConstraintVersion.
	Update(ctx context.Context, s *model.Subscription) error
	// IncTracksSaved atomically bumps tracks_saved and returns the stored row.
	IncTracksSaved(ctx context.Context, id string, at time.Time) (*model.Subscription, error)
	FindByID(ctx context.Context, id string) (*model.Subscription, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Subscription, error)

	// Active lookups, newest first.
	FindActiveByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error)
	FindLatestActiveTemporary(ctx context.Context, userID string) (*model.Subscription, error)
	FindLatestActiveByUser(ctx context.Context, userID string) (*model.Subscription, error)

	// Any-status lookups used when recovering from insert races.
	FindLatestByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error)
	FindLatestByUser(ctx context.Context, userID string) (*model.Subscription, error)

	// DeactivateExpired flips Active off for windows that ended before now.
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
	CountActive(ctx context.Context) (int, error)
}
