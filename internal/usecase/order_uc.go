// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/domain/ports/repository"
	"track-billing/internal/infra/logging"
	"track-billing/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// OrderRequest is a validated purchase intent.
type OrderRequest struct {
	UserID  string
	Tier    model.Tier
	Purpose model.Purpose
	TrackID *string
}

// OrderResult is what the client needs to open the gateway checkout.
type OrderResult struct {
	PaymentID      string
	GatewayOrderID string
	Amount         int64
	Currency       string
	KeyID          string
	// Recovered is true when an existing payment was returned instead of a new one.
	Recovered bool
}

type OrderUseCase interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	// SweepOrphans deletes stale pending payments that never got an order id.
	SweepOrphans(ctx context.Context) (int, error)
}

type OrderConfig struct {
	Currency       string
	GatewayTimeout time.Duration
	OrphanWindow   time.Duration
	OrderLimit     int
	OrderWindow    time.Duration
	// NewReceipt generates the receipt reference sent to the gateway.
	NewReceipt func() string
}

type orderUC struct {
	payments repository.PaymentRepository
	gateway  adapter.PaymentGateway
	audit    adapter.AuditSink
	limiter  RateLimiter
	cfg      OrderConfig
	now      Clock
	log      *zerolog.Logger
}

func NewOrderUseCase(payments repository.PaymentRepository, gateway adapter.PaymentGateway, audit adapter.AuditSink, limiter RateLimiter, cfg OrderConfig, logger *zerolog.Logger) *orderUC {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if cfg.OrphanWindow <= 0 {
		cfg.OrphanWindow = 15 * time.Minute
	}
	if cfg.NewReceipt == nil {
		cfg.NewReceipt = func() string { return "rcpt_" + ulid.Make().String() }
	}
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{
		payments: payments,
		gateway:  gateway,
		audit:    audit,
		limiter:  limiter,
		cfg:      cfg,
		now:      time.Now,
		log:      &l,
	}
}

// WithClock replaces the time source.
func (u *orderUC) WithClock(c Clock) *orderUC {
	u.now = c
	return u
}

func (r OrderRequest) validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	if _, err := model.ParseTier(string(r.Tier)); err != nil {
		return fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidArgument, r.Tier)
	}
	p, err := model.ParsePurpose(string(r.Purpose))
	if err != nil {
		return fmt.Errorf("%w: unknown purpose %q", domain.ErrInvalidArgument, r.Purpose)
	}
	if p.RequiresTrack() && (r.TrackID == nil || *r.TrackID == "") {
		return fmt.Errorf("%w: purpose %s requires a track", domain.ErrInvalidArgument, p)
	}
	return nil
}

// CreateOrder allocates a gateway order and persists exactly one pending
// payment for it. Store conflicts are recovered by re-reading, then by one
// orphan sweep and retry.
func (u *orderUC) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "OrderUC.CreateOrder")()

	if err := u.allow(ctx, req.UserID); err != nil {
		return nil, err
	}

	amount := req.Tier.Price()
	receipt := u.cfg.NewReceipt()
	order, err := u.createGatewayOrder(ctx, req, amount, receipt)
	if err != nil {
		log.Error().Err(err).Str("provider", u.gateway.Name()).Msg("gateway create order failed")
		metrics.IncPayment("gateway_error")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if order.ID == "" {
		log.Error().Str("provider", u.gateway.Name()).Msg("gateway returned empty order id")
		metrics.IncPayment("gateway_error")
		return nil, fmt.Errorf("%w: empty order id", domain.ErrGatewayUnavailable)
	}

	// Idempotent short-circuit: the order is already recorded.
	if existing, err := u.payments.FindByGatewayOrderID(ctx, order.ID); err == nil {
		return u.result(existing, true), nil
	} else if !isNotFound(err) {
		return nil, err
	}

	p, err := model.NewPendingPayment(uuid.NewString(), req.UserID, order.ID, receipt, amount, u.cfg.Currency, req.Purpose, req.TrackID)
	if err != nil {
		return nil, err
	}
	p.CreatedAt, p.UpdatedAt = u.now(), u.now()

	err = u.payments.Create(ctx, p)
	if err == nil {
		u.created(ctx, p)
		return u.result(p, false), nil
	}
	if !domain.IsConflict(err) {
		return nil, err
	}
	log.Warn().Err(err).Str("order_id", order.ID).Msg("payment insert conflict, recovering")
	return u.recover(ctx, p)
}

func (u *orderUC) allow(ctx context.Context, userID string) error {
	if u.limiter == nil || u.cfg.OrderLimit <= 0 {
		return nil
	}
	ok, err := u.limiter.Allow(ctx, "rate_limit:"+userID+":create_order", u.cfg.OrderLimit, u.cfg.OrderWindow)
	if err != nil {
		// fail open: the limiter protects the gateway, not correctness
		u.log.Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func (u *orderUC) createGatewayOrder(ctx context.Context, req OrderRequest, amount int64, receipt string) (adapter.Order, error) {
	gctx, cancel := context.WithTimeout(ctx, u.cfg.GatewayTimeout)
	defer cancel()

	notes := map[string]string{
		"user_id": req.UserID,
		"tier":    string(req.Tier),
		"purpose": string(req.Purpose),
	}
	if req.TrackID != nil && *req.TrackID != "" {
		notes["track_id"] = *req.TrackID
	}
	start := time.Now()
	order, err := u.gateway.CreateOrder(gctx, adapter.OrderParams{
		Amount:   amount,
		Currency: u.cfg.Currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	metrics.ObserveGatewayCall(u.gateway.Name(), err == nil, time.Since(start).Seconds())
	return order, err
}

// recover resolves an insert conflict for p. The order id hit means a
// retried request already stored it; a miss means another index fired on a
// stale row, which the orphan sweep may clear.
func (u *orderUC) recover(ctx context.Context, p *model.Payment) (*OrderResult, error) {
	log := logging.With(ctx, u.log)

	if existing, err := u.payments.FindByGatewayOrderID(ctx, p.GatewayOrderID); err == nil {
		metrics.IncOrderRecovery("duplicate_intent")
		return u.result(existing, true), nil
	} else if !isNotFound(err) {
		return nil, err
	}

	cutoff := u.now().Add(-u.cfg.OrphanWindow)
	n, err := u.payments.DeleteOrphanedPending(ctx, p.UserID, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("orphan sweep failed")
	} else {
		log.Info().Int("deleted", n).Msg("orphan sweep before retry")
	}

	err = u.payments.Create(ctx, p)
	if err == nil {
		metrics.IncOrderRecovery("orphan_sweep")
		u.created(ctx, p)
		return u.result(p, false), nil
	}
	if !domain.IsConflict(err) {
		return nil, err
	}
	// A concurrent retry may have won in between.
	if existing, ferr := u.payments.FindByGatewayOrderID(ctx, p.GatewayOrderID); ferr == nil {
		metrics.IncOrderRecovery("duplicate_intent")
		return u.result(existing, true), nil
	}
	metrics.IncOrderRecovery("exhausted")
	log.Error().Err(err).Str("order_id", p.GatewayOrderID).Msg("payment insert still conflicting after sweep")
	return nil, fmt.Errorf("%w: %w", domain.ErrRetryable, domain.ErrOrphanedRecordConflict)
}

func (u *orderUC) created(ctx context.Context, p *model.Payment) {
	metrics.IncPayment("initiated")
	publish(ctx, u.audit, u.log, adapter.AuditEvent{
		Type:      adapter.AuditPaymentCreated,
		UserID:    p.UserID,
		PaymentID: p.ID,
		TrackID:   p.TrackOrEmpty(),
		Amount:    p.Amount,
		At:        p.CreatedAt,
	})
}

func (u *orderUC) result(p *model.Payment, recovered bool) *OrderResult {
	return &OrderResult{
		PaymentID:      p.ID,
		GatewayOrderID: p.GatewayOrderID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		KeyID:          u.gateway.KeyID(),
		Recovered:      recovered,
	}
}

func (u *orderUC) SweepOrphans(ctx context.Context) (int, error) {
	return u.payments.DeleteOrphanedPending(ctx, "", u.now().Add(-u.cfg.OrphanWindow))
}
