package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ db querier }

func NewPaymentRepo(db querier) *paymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, user_id, gateway_order_id, gateway_payment_id, gateway_signature, receipt, amount, currency, tier, purpose, track_id, status, created_at, updated_at, completed_at, subscription_id, applied_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var orderID, payID, sig, receipt, subID *string
	var tier, purpose, status string
	if err := row.Scan(&p.ID, &p.UserID, &orderID, &payID, &sig, &receipt, &p.Amount, &p.Currency, &tier, &purpose, &p.TrackID, &status, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt, &subID, &p.AppliedAt); err != nil {
		return nil, mapReadErr(err)
	}
	if orderID != nil {
		p.GatewayOrderID = *orderID
	}
	if payID != nil {
		p.GatewayPaymentID = *payID
	}
	if sig != nil {
		p.GatewaySignature = *sig
	}
	if receipt != nil {
		p.Receipt = *receipt
	}
	if subID != nil {
		p.SubscriptionID = *subID
	}
	p.Tier = model.Tier(tier)
	p.Purpose = model.Purpose(purpose)
	p.Status = model.PaymentStatus(status)
	return p, nil
}

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,NULL,NULL,$4,$5,$6,$7,$8,$9,$10,$11,$12,NULL,NULL,NULL);`
	_, err := r.db.Exec(ctx, q, p.ID, p.UserID, model.StrPtr(p.GatewayOrderID), model.StrPtr(p.Receipt), p.Amount, p.Currency,
		string(p.Tier), string(p.Purpose), p.TrackID, string(p.Status), p.CreatedAt, p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	return scanPayment(r.db.QueryRow(ctx, q, id))
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	if orderID == "" {
		return nil, domain.ErrNotFound
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id=$1 LIMIT 1;`
	return scanPayment(r.db.QueryRow(ctx, q, orderID))
}

func (r *paymentRepo) MarkCompleted(ctx context.Context, id, gatewayPaymentID, signature string, tier model.Tier, completedAt time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status='completed', gateway_payment_id=$2, gateway_signature=$3, tier=$4, completed_at=$5, updated_at=$5
 WHERE id=$1 AND status='pending';`
	cmd, err := r.db.Exec(ctx, q, id, gatewayPaymentID, signature, string(tier), completedAt)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) MarkFailed(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE payments SET status='failed', updated_at=NOW() WHERE id=$1 AND status='pending';`
	cmd, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) SetTrackIfEmpty(ctx context.Context, id, trackID string) (bool, error) {
	if trackID == "" {
		return false, domain.ErrInvalidArgument
	}
	const q = `UPDATE payments SET track_id=$2, updated_at=NOW() WHERE id=$1 AND (track_id IS NULL OR track_id='');`
	cmd, err := r.db.Exec(ctx, q, id, trackID)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) UpdateTier(ctx context.Context, id string, tier model.Tier) error {
	const q = `UPDATE payments SET tier=$2, updated_at=NOW() WHERE id=$1;`
	_, err := r.db.Exec(ctx, q, id, string(tier))
	return mapWriteErr(err)
}

func (r *paymentRepo) MarkApplied(ctx context.Context, id, subscriptionID string, at time.Time) error {
	const q = `UPDATE payments SET subscription_id=$2, applied_at=$3, updated_at=$3 WHERE id=$1 AND applied_at IS NULL;`
	_, err := r.db.Exec(ctx, q, id, subscriptionID, at)
	return mapWriteErr(err)
}

func (r *paymentRepo) DeleteOrphanedPending(ctx context.Context, userID string, olderThan time.Time) (int, error) {
	const q = `
DELETE FROM payments
 WHERE status='pending'
   AND (gateway_order_id IS NULL OR gateway_order_id='')
   AND created_at < $1
   AND ($2::text='' OR user_id=$2::text);`
	cmd, err := r.db.Exec(ctx, q, olderThan, userID)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return int(cmd.RowsAffected()), nil
}
