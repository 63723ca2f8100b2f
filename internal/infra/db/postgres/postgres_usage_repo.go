package postgres

import (
	"context"

	"github.com/google/uuid"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*usageRepo)(nil)

type usageRepo struct{ db querier }

func NewUsageRepo(db querier) *usageRepo {
	return &usageRepo{db: db}
}

func (r *usageRepo) Ensure(ctx context.Context, u *model.UsageTracking) (*model.UsageTracking, error) {
	if u == nil || u.SubscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	const q = `
INSERT INTO usage_tracking (id, user_id, subscription_id, tracks_saved, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (subscription_id) DO NOTHING;`
	if _, err := r.db.Exec(ctx, q, u.ID, u.UserID, u.SubscriptionID, u.TracksSaved, u.CreatedAt, u.UpdatedAt); err != nil {
		return nil, mapWriteErr(err)
	}
	return r.FindBySubscription(ctx, u.SubscriptionID)
}

func (r *usageRepo) FindBySubscription(ctx context.Context, subscriptionID string) (*model.UsageTracking, error) {
	const q = `SELECT id, user_id, subscription_id, tracks_saved, created_at, updated_at FROM usage_tracking WHERE subscription_id=$1;`
	u := &model.UsageTracking{
		Daily:   map[string]map[string]int{},
		Monthly: map[string]map[string]int{},
	}
	if err := r.db.QueryRow(ctx, q, subscriptionID).Scan(&u.ID, &u.UserID, &u.SubscriptionID, &u.TracksSaved, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapReadErr(err)
	}

	const cq = `SELECT kind, unit_id, period_key, count FROM usage_counters WHERE subscription_id=$1;`
	rows, err := r.db.Query(ctx, cq, subscriptionID)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, unit, period string
		var n int
		if err := rows.Scan(&kind, &unit, &period, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		m := u.Daily
		if model.UsageKind(kind) == model.UsageMonthly {
			m = u.Monthly
		}
		if m[unit] == nil {
			m[unit] = map[string]int{}
		}
		m[unit][period] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// Increment is a single upsert so concurrent callers on the same key are
// serialised by the row lock Postgres takes on conflict.
func (r *usageRepo) Increment(ctx context.Context, subscriptionID string, kind model.UsageKind, unitID, periodKey string) (int, error) {
	const q = `
INSERT INTO usage_counters (subscription_id, kind, unit_id, period_key, count)
SELECT subscription_id, $2, $3, $4, 1 FROM usage_tracking WHERE subscription_id=$1
ON CONFLICT (subscription_id, kind, unit_id, period_key)
DO UPDATE SET count = usage_counters.count + 1
RETURNING count;`
	var n int
	if err := r.db.QueryRow(ctx, q, subscriptionID, string(kind), unitID, periodKey).Scan(&n); err != nil {
		return 0, mapReadErr(err)
	}
	return n, nil
}

func (r *usageRepo) Count(ctx context.Context, subscriptionID string, kind model.UsageKind, unitID, periodKey string) (int, error) {
	const q = `
SELECT COALESCE((SELECT count FROM usage_counters
                  WHERE subscription_id=$1 AND kind=$2 AND unit_id=$3 AND period_key=$4), 0);`
	var n int
	if err := r.db.QueryRow(ctx, q, subscriptionID, string(kind), unitID, periodKey).Scan(&n); err != nil {
		return 0, mapReadErr(err)
	}
	return n, nil
}

func (r *usageRepo) IncTracksSaved(ctx context.Context, subscriptionID string) (int, error) {
	const q = `UPDATE usage_tracking SET tracks_saved = tracks_saved + 1, updated_at=NOW() WHERE subscription_id=$1 RETURNING tracks_saved;`
	var n int
	if err := r.db.QueryRow(ctx, q, subscriptionID).Scan(&n); err != nil {
		return 0, mapReadErr(err)
	}
	return n, nil
}

func (r *usageRepo) ResetTracksSaved(ctx context.Context, subscriptionID string) error {
	const q = `UPDATE usage_tracking SET tracks_saved = 0, updated_at=NOW() WHERE subscription_id=$1;`
	cmd, err := r.db.Exec(ctx, q, subscriptionID)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
