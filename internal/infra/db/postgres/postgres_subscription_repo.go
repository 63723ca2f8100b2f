package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ db querier }

func NewSubscriptionRepo(db querier) *subscriptionRepo {
	return &subscriptionRepo{db: db}
}

const subColumns = `id, user_id, track_id, tier, plan_amount, start_at, expires_at, active, payment_id, daily_chat_limit, monthly_generation_limit, tracks_saved, version, created_at, updated_at`

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var tier string
	if err := row.Scan(&s.ID, &s.UserID, &s.TrackID, &tier, &s.PlanAmount, &s.StartAt, &s.ExpiresAt, &s.Active, &s.PaymentID,
		&s.DailyChatLimit, &s.MonthlyGenerationLimit, &s.TracksSaved, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	s.Tier = model.Tier(tier)
	return s, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`
	_, err := r.db.Exec(ctx, q, s.ID, s.UserID, s.TrackID, string(s.Tier), s.PlanAmount, s.StartAt, s.ExpiresAt, s.Active, s.PaymentID,
		s.DailyChatLimit, s.MonthlyGenerationLimit, s.TracksSaved, s.Version, s.CreatedAt, s.UpdatedAt)
	return mapWriteErr(err)
}

func (r *subscriptionRepo) Update(ctx context.Context, s *model.Subscription) error {
	const q = `
UPDATE subscriptions
   SET track_id=$2, tier=$3, plan_amount=$4, start_at=$5, expires_at=$6, active=$7, payment_id=$8,
       daily_chat_limit=$9, monthly_generation_limit=$10, tracks_saved=$11, updated_at=$12,
       version=version+1
 WHERE id=$1 AND version=$13;`
	cmd, err := r.db.Exec(ctx, q, s.ID, s.TrackID, string(s.Tier), s.PlanAmount, s.StartAt, s.ExpiresAt, s.Active, s.PaymentID,
		s.DailyChatLimit, s.MonthlyGenerationLimit, s.TracksSaved, s.UpdatedAt, s.Version)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, s.ID); err != nil {
			return err
		}
		return &domain.ConflictError{Constraint: domain.ConstraintVersion}
	}
	s.Version++
	return nil
}

func (r *subscriptionRepo) IncTracksSaved(ctx context.Context, id string, at time.Time) (*model.Subscription, error) {
	const q = `
UPDATE subscriptions
   SET tracks_saved=tracks_saved+1, version=version+1, updated_at=$2
 WHERE id=$1
RETURNING ` + subColumns + `;`
	return scanSub(r.db.QueryRow(ctx, q, id, at))
}

func (r *subscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE id=$1;`
	return scanSub(r.db.QueryRow(ctx, q, id))
}

func (r *subscriptionRepo) FindByPaymentID(ctx context.Context, paymentID string) (*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE payment_id=$1 ORDER BY created_at DESC LIMIT 1;`
	return scanSub(r.db.QueryRow(ctx, q, paymentID))
}

func (r *subscriptionRepo) FindActiveByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND track_id=$2 AND active
 ORDER BY created_at DESC
 LIMIT 1;`
	return scanSub(r.db.QueryRow(ctx, q, userID, trackID))
}

func (r *subscriptionRepo) FindLatestActiveTemporary(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND (track_id IS NULL OR track_id='') AND active
 ORDER BY created_at DESC
 LIMIT 1;`
	return scanSub(r.db.QueryRow(ctx, q, userID))
}

func (r *subscriptionRepo) FindLatestActiveByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND active
 ORDER BY created_at DESC
 LIMIT 1;`
	return scanSub(r.db.QueryRow(ctx, q, userID))
}

func (r *subscriptionRepo) FindLatestByUserAndTrack(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND COALESCE(track_id,'')=$2
 ORDER BY active DESC, created_at DESC
 LIMIT 1;`
	return scanSub(r.db.QueryRow(ctx, q, userID, trackID))
}

func (r *subscriptionRepo) FindLatestByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT 1;`
	return scanSub(r.db.QueryRow(ctx, q, userID))
}

func (r *subscriptionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	const q = `UPDATE subscriptions SET active=false, version=version+1, updated_at=$1 WHERE active AND expires_at < $1;`
	cmd, err := r.db.Exec(ctx, q, now)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return int(cmd.RowsAffected()), nil
}

func (r *subscriptionRepo) CountActive(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM subscriptions WHERE active;`
	var n int
	if err := r.db.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, mapReadErr(err)
	}
	return n, nil
}
