// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/domain/ports/repository"
	"track-billing/internal/infra/logging"
	"track-billing/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// VerifyRequest carries the gateway checkout callback for the caller's user.
type VerifyRequest struct {
	UserID           string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	// PaymentID optionally pins the internal record the client expects.
	PaymentID string
}

type PaymentUseCase interface {
	// Verify checks the callback signature and completes or fails the payment.
	// A completed payment is returned unchanged on replay.
	Verify(ctx context.Context, req VerifyRequest) (*model.Payment, error)
}

// Resolver is the subscription side of a completed payment.
type Resolver interface {
	Resolve(ctx context.Context, p *model.Payment) (*model.Subscription, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	gateway  adapter.PaymentGateway
	resolver Resolver
	audit    adapter.AuditSink
	now      Clock
	log      *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, gateway adapter.PaymentGateway, resolver Resolver, audit adapter.AuditSink, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments: payments,
		gateway:  gateway,
		resolver: resolver,
		audit:    audit,
		now:      time.Now,
		log:      &l,
	}
}

// WithClock replaces the time source.
func (u *paymentUC) WithClock(c Clock) *paymentUC {
	u.now = c
	return u
}

func (u *paymentUC) Verify(ctx context.Context, req VerifyRequest) (*model.Payment, error) {
	start := time.Now()
	p, reason, err := u.verify(ctx, req)
	result := "ok"
	if err != nil {
		result = "fail"
	}
	metrics.ObserveVerify(result, reason, time.Since(start).Seconds())
	return p, err
}

func (u *paymentUC) verify(ctx context.Context, req VerifyRequest) (*model.Payment, string, error) {
	if req.UserID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		return nil, "bad_request", domain.ErrInvalidArgument
	}
	log := logging.With(ctx, u.log)

	p, err := u.payments.FindByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		if isNotFound(err) {
			return nil, "not_found", domain.ErrPaymentNotFound
		}
		return nil, "unknown", err
	}
	// Foreign payments read as absent so ids cannot be enumerated.
	if p.UserID != req.UserID || (req.PaymentID != "" && req.PaymentID != p.ID) {
		return nil, "not_found", domain.ErrPaymentNotFound
	}
	ctx = logging.WithPaymentID(ctx, p.ID)
	log = logging.With(ctx, u.log)

	switch {
	case p.IsCompleted() && p.IsApplied():
		return p, "replay", nil
	case p.IsCompleted():
		// Completed earlier but never funded a subscription.
		log.Warn().Msg("completed payment not applied, resolving again")
		if err := u.apply(ctx, p, log); err != nil {
			return nil, "resolve_error", err
		}
		return p, "reapplied", nil
	case p.IsFailed():
		return nil, "already_failed", domain.ErrAlreadyFailed
	}

	if !u.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		return u.fail(ctx, p, req)
	}

	// Tier comes from what was charged, not from the stored label.
	tier := model.TierForAmount(p.Amount)
	now := u.now()
	won, err := u.payments.MarkCompleted(ctx, p.ID, req.GatewayPaymentID, req.Signature, tier, now)
	if err != nil {
		return nil, "unknown", err
	}
	if !won {
		// Another request moved it first; report its outcome without re-resolving.
		cur, err := u.payments.FindByID(ctx, p.ID)
		if err != nil {
			return nil, "unknown", err
		}
		if cur.IsCompleted() {
			return cur, "replay", nil
		}
		return nil, "already_failed", domain.ErrAlreadyFailed
	}

	p.Status = model.PaymentStatusCompleted
	p.GatewayPaymentID = req.GatewayPaymentID
	p.GatewaySignature = req.Signature
	p.Tier = tier
	p.CompletedAt = &now
	p.UpdatedAt = now

	metrics.IncPayment("completed")
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	publish(ctx, u.audit, u.log, adapter.AuditEvent{
		Type:      adapter.AuditPaymentCompleted,
		UserID:    p.UserID,
		PaymentID: p.ID,
		TrackID:   p.TrackOrEmpty(),
		Amount:    p.Amount,
		At:        now,
	})

	if err := u.apply(ctx, p, log); err != nil {
		return nil, "resolve_error", err
	}
	log.Info().Int64("amount", p.Amount).Msg("payment verified")
	return p, "completed", nil
}

// apply resolves the subscription p funds and records it on p. A failure
// leaves p unapplied so the next verify of the same order retries it.
func (u *paymentUC) apply(ctx context.Context, p *model.Payment, log *zerolog.Logger) error {
	s, err := u.resolver.Resolve(ctx, p)
	if err != nil {
		log.Error().Err(err).Msg("payment completed but subscription not resolved")
		return fmt.Errorf("resolve subscription: %w", err)
	}
	now := u.now()
	if err := u.payments.MarkApplied(ctx, p.ID, s.ID, now); err != nil {
		log.Warn().Err(err).Str("subscription_id", s.ID).Msg("mark payment applied")
		return nil
	}
	p.SubscriptionID = s.ID
	p.AppliedAt = &now
	return nil
}

func (u *paymentUC) fail(ctx context.Context, p *model.Payment, req VerifyRequest) (*model.Payment, string, error) {
	log := logging.With(ctx, u.log)
	log.Error().
		Str("order_id", req.GatewayOrderID).
		Str("gateway_payment_id", req.GatewayPaymentID).
		Str("signature", logging.Redact(req.Signature)).
		Msg("payment signature mismatch")

	won, err := u.payments.MarkFailed(ctx, p.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error().Err(err).Msg("mark failed")
	}
	if won {
		metrics.IncPayment("failed")
		publish(ctx, u.audit, u.log, adapter.AuditEvent{
			Type:      adapter.AuditPaymentFailed,
			UserID:    p.UserID,
			PaymentID: p.ID,
			Amount:    p.Amount,
			At:        u.now(),
		})
	}
	return nil, "signature_mismatch", domain.ErrSignatureMismatch
}
