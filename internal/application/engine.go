// Package application composes the billing use cases over a chosen set of
// stores and adapters.
package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/config"
	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/domain/ports/repository"
	"track-billing/internal/infra/db/memory"
	"track-billing/internal/usecase"
)

// Stores is the persistence the engine runs on.
type Stores struct {
	Payments      repository.PaymentRepository
	Subscriptions repository.SubscriptionRepository
	Usage         repository.UsageRepository
	Catalog       adapter.ContentCatalog
}

// MemoryStores returns fresh in-process stores over catalog.
func MemoryStores(catalog adapter.ContentCatalog) Stores {
	return Stores{
		Payments:      memory.NewPaymentRepo(),
		Subscriptions: memory.NewSubscriptionRepo(),
		Usage:         memory.NewUsageRepo(),
		Catalog:       catalog,
	}
}

// Deps are the outward-facing adapters. Audit and Limiter may be nil.
type Deps struct {
	Gateway adapter.PaymentGateway
	Audit   adapter.AuditSink
	Limiter usecase.RateLimiter
	Clock   usecase.Clock
}

type Engine struct {
	Orders        usecase.OrderUseCase
	Payments      usecase.PaymentUseCase
	Subscriptions usecase.SubscriptionUseCase
	Access        usecase.AccessUseCase
	Usage         usecase.UsageUseCase
}

func NewEngine(stores Stores, deps Deps, cfg *config.Config, logger *zerolog.Logger) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	subUC := usecase.NewSubscriptionUseCase(stores.Subscriptions, stores.Payments, stores.Usage, deps.Audit,
		usecase.SubscriptionConfig{LenientFallback: cfg.Engine.Lenient()}, logger).WithClock(clock)
	orderUC := usecase.NewOrderUseCase(stores.Payments, deps.Gateway, deps.Audit, deps.Limiter, usecase.OrderConfig{
		Currency:       cfg.Payment.Currency,
		GatewayTimeout: cfg.Payment.Timeout,
		OrphanWindow:   cfg.Payment.OrphanWindow,
		OrderLimit:     cfg.Payment.OrderLimit,
		OrderWindow:    cfg.Payment.OrderWindow,
	}, logger).WithClock(clock)

	return &Engine{
		Orders:        orderUC,
		Payments:      usecase.NewPaymentUseCase(stores.Payments, deps.Gateway, subUC, deps.Audit, logger).WithClock(clock),
		Subscriptions: subUC,
		Access:        usecase.NewAccessUseCase(stores.Subscriptions, stores.Catalog, logger).WithClock(clock),
		Usage:         usecase.NewUsageUseCase(stores.Subscriptions, stores.Usage, logger).WithClock(clock),
	}
}

// AccessSummary renders a track report as plain text, one module per line.
func (e *Engine) AccessSummary(ctx context.Context, userID, trackID string) (string, error) {
	r, err := e.Access.TrackAccess(ctx, userID, trackID)
	if err != nil {
		return "", fmt.Errorf("track access: %w", err)
	}
	var b strings.Builder
	if r.SubscriptionID == "" {
		fmt.Fprintf(&b, "%s: no active subscription\n", trackID)
	} else {
		fmt.Fprintf(&b, "%s: %s until %s, %d module(s) open\n",
			trackID, r.Tier, r.ExpiresAt.Format("2006-01-02"), r.Unlocked)
	}
	for _, m := range r.Modules {
		mark := "locked"
		if m.Accessible {
			mark = "open"
		}
		fmt.Fprintf(&b, "  %d. %s [%s]\n", m.Index+1, m.ID, mark)
	}
	return b.String(), nil
}
