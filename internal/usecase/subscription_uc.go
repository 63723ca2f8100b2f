// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/domain/ports/repository"
	"track-billing/internal/infra/logging"
	"track-billing/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	Resolver
	// Link binds a completed track-less payment and its temporary
	// subscription to trackID. Each payment links at most once.
	Link(ctx context.Context, userID, paymentID, trackID string) (*model.Subscription, error)
	// FinishExpired deactivates every window that ended before now.
	FinishExpired(ctx context.Context) (int, error)
}

type SubscriptionConfig struct {
	// LenientFallback lets a tracked payment adopt the user's newest active
	// subscription when nothing matches its track. Only a temporary or
	// same-track record is ever adopted.
	LenientFallback bool
}

// lookup is one resolution strategy. It returns a confident match, or nil
// to fall through to the next one.
type lookup struct {
	name string
	find func(ctx context.Context, p *model.Payment) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	usage    repository.UsageRepository
	audit    adapter.AuditSink
	lookups  []lookup
	now      Clock
	log      *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, payments repository.PaymentRepository, usage repository.UsageRepository, audit adapter.AuditSink, cfg SubscriptionConfig, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	uc := &subscriptionUC{
		subs:     subs,
		payments: payments,
		usage:    usage,
		audit:    audit,
		now:      time.Now,
		log:      &l,
	}
	uc.lookups = []lookup{
		{name: "exact_track", find: uc.findExactTrack},
		{name: "temporary", find: uc.findTemporary},
	}
	if cfg.LenientFallback {
		uc.lookups = append(uc.lookups, lookup{name: "latest_active", find: uc.findLatestActive})
	}
	return uc
}

// WithClock replaces the time source.
func (uc *subscriptionUC) WithClock(c Clock) *subscriptionUC {
	uc.now = c
	return uc
}

// compatible reports whether s may be mutated on behalf of p: same track, or
// s is temporary. A track-less payment only ever touches temporary records.
func compatible(s *model.Subscription, p *model.Payment) bool {
	if s.IsTemporary() {
		return true
	}
	return p.HasTrack() && s.TrackOrEmpty() == p.TrackOrEmpty()
}

func (uc *subscriptionUC) findExactTrack(ctx context.Context, p *model.Payment) (*model.Subscription, error) {
	if !p.HasTrack() {
		return nil, nil
	}
	s, err := uc.subs.FindActiveByUserAndTrack(ctx, p.UserID, p.TrackOrEmpty())
	if err != nil {
		return nil, err
	}
	// Loose stores may hand back another track; never trust it.
	if s.TrackOrEmpty() != p.TrackOrEmpty() {
		return nil, nil
	}
	return s, nil
}

func (uc *subscriptionUC) findTemporary(ctx context.Context, p *model.Payment) (*model.Subscription, error) {
	if p.HasTrack() {
		return nil, nil
	}
	s, err := uc.subs.FindLatestActiveTemporary(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !s.IsTemporary() {
		return nil, nil
	}
	return s, nil
}

func (uc *subscriptionUC) findLatestActive(ctx context.Context, p *model.Payment) (*model.Subscription, error) {
	s, err := uc.subs.FindLatestActiveByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !compatible(s, p) {
		return nil, nil
	}
	return s, nil
}

func (uc *subscriptionUC) find(ctx context.Context, p *model.Payment) (*model.Subscription, string, error) {
	for _, l := range uc.lookups {
		s, err := l.find(ctx, p)
		if err != nil && !isNotFound(err) {
			return nil, "", err
		}
		if s != nil {
			return s, l.name, nil
		}
	}
	return nil, "", nil
}

// Resolve finds or creates the one subscription a completed payment funds.
func (uc *subscriptionUC) Resolve(ctx context.Context, p *model.Payment) (*model.Subscription, error) {
	if p == nil || !p.IsCompleted() || p.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, uc.log).With().Str("payment_id", p.ID).Logger()

	if derived := model.TierForAmount(p.Amount); p.Tier != derived {
		log.Warn().Str("stored", string(p.Tier)).Str("derived", string(derived)).Msg("correcting payment tier from amount")
		if err := uc.payments.UpdateTier(ctx, p.ID, derived); err != nil {
			log.Error().Err(err).Msg("update payment tier")
		}
		p.Tier = derived
	}

	existing, via, err := uc.find(ctx, p)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return uc.create(ctx, p, &log)
	}
	log.Debug().Str("strategy", via).Str("subscription_id", existing.ID).Msg("subscription matched")
	return uc.apply(ctx, existing, p, &log)
}

// maxApplyAttempts bounds how often apply re-reads a window that kept
// changing under it before giving up with ErrRetryable.
const maxApplyAttempts = 3

// apply renews s in place for p. A write that lost to a concurrent one is
// redone on a fresh read so neither payment's period is dropped.
func (uc *subscriptionUC) apply(ctx context.Context, s *model.Subscription, p *model.Payment, log *zerolog.Logger) (*model.Subscription, error) {
	for attempt := 1; ; attempt++ {
		out, err := uc.applyOnce(ctx, s, p, log)
		if !domain.IsStaleWrite(err) {
			return out, err
		}
		if attempt == maxApplyAttempts {
			return nil, fmt.Errorf("%w: %v", domain.ErrRetryable, err)
		}
		log.Debug().Str("subscription_id", s.ID).Int("attempt", attempt).Msg("subscription changed concurrently, re-reading")
		if s, err = uc.subs.FindByID(ctx, s.ID); err != nil {
			return nil, err
		}
	}
}

// applyOnce renews s for p, linking it first when it is temporary and p
// carries a track.
func (uc *subscriptionUC) applyOnce(ctx context.Context, s *model.Subscription, p *model.Payment, log *zerolog.Logger) (*model.Subscription, error) {
	if !compatible(s, p) {
		log.Error().Str("subscription_id", s.ID).Str("subscription_track", s.TrackOrEmpty()).
			Str("payment_track", p.TrackOrEmpty()).Msg("refusing cross-track mutation")
		return nil, domain.ErrCrossTrackConflict
	}
	// Already funded by this payment: nothing to apply twice.
	if s.PaymentID == p.ID {
		return s, nil
	}

	outcome := "renewed"
	event := adapter.AuditSubscriptionRenewed
	if s.IsTemporary() && p.HasTrack() {
		track := p.TrackOrEmpty()
		s.TrackID = &track
		outcome, event = "linked", adapter.AuditSubscriptionLinked
		// The temporary window's own payment follows it onto the track.
		if s.PaymentID != "" {
			if _, err := uc.payments.SetTrackIfEmpty(ctx, s.PaymentID, track); err != nil && !isNotFound(err) {
				log.Warn().Err(err).Str("funding_payment_id", s.PaymentID).Msg("link funding payment")
			}
		}
	}
	s.Renew(p, uc.now())
	if err := uc.subs.Update(ctx, s); err != nil {
		if domain.IsConflict(err) && !domain.IsStaleWrite(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrRetryable, err)
		}
		return nil, err
	}
	uc.ensureUsage(ctx, s, true, log)
	uc.resolved(ctx, s, p, outcome, event)
	return s, nil
}

func (uc *subscriptionUC) create(ctx context.Context, p *model.Payment, log *zerolog.Logger) (*model.Subscription, error) {
	s, err := model.NewSubscription(uuid.NewString(), p, uc.now())
	if err != nil {
		return nil, err
	}
	err = uc.subs.Create(ctx, s)
	if err == nil {
		uc.ensureUsage(ctx, s, false, log)
		uc.resolved(ctx, s, p, "created", adapter.AuditSubscriptionCreated)
		return s, nil
	}
	if !domain.IsConflict(err) {
		return nil, err
	}

	log.Warn().Err(err).Msg("subscription insert raced, re-querying")
	found, ferr := uc.recoverRace(ctx, p)
	if ferr != nil {
		return nil, ferr
	}
	metrics.IncSubscriptionResolved("race_recovered")
	return uc.apply(ctx, found, p, log)
}

// recoverRace finds the record a concurrent writer created: exact active
// key, then user and track in any state, then the user's newest record.
func (uc *subscriptionUC) recoverRace(ctx context.Context, p *model.Payment) (*model.Subscription, error) {
	track := p.TrackOrEmpty()
	steps := []func() (*model.Subscription, error){
		func() (*model.Subscription, error) {
			if track == "" {
				return uc.subs.FindLatestActiveTemporary(ctx, p.UserID)
			}
			return uc.subs.FindActiveByUserAndTrack(ctx, p.UserID, track)
		},
		func() (*model.Subscription, error) { return uc.subs.FindLatestByUserAndTrack(ctx, p.UserID, track) },
		func() (*model.Subscription, error) { return uc.subs.FindLatestByUser(ctx, p.UserID) },
	}
	for _, step := range steps {
		s, err := step()
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if compatible(s, p) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: no record to recover subscription race", domain.ErrRetryable)
}

// ensureUsage creates the ledger for s if missing. Renewals keep counters
// and only zero the saved-track count.
func (uc *subscriptionUC) ensureUsage(ctx context.Context, s *model.Subscription, renewed bool, log *zerolog.Logger) {
	u, err := model.NewUsageTracking(uuid.NewString(), s)
	if err != nil {
		return
	}
	if _, err := uc.usage.Ensure(ctx, u); err != nil {
		log.Error().Err(err).Str("subscription_id", s.ID).Msg("ensure usage ledger")
		return
	}
	if renewed {
		if err := uc.usage.ResetTracksSaved(ctx, s.ID); err != nil {
			log.Warn().Err(err).Str("subscription_id", s.ID).Msg("reset tracks saved")
		}
	}
}

func (uc *subscriptionUC) resolved(ctx context.Context, s *model.Subscription, p *model.Payment, outcome string, ev adapter.AuditEventType) {
	metrics.IncSubscriptionResolved(outcome)
	publish(ctx, uc.audit, uc.log, adapter.AuditEvent{
		Type:           ev,
		UserID:         s.UserID,
		PaymentID:      p.ID,
		SubscriptionID: s.ID,
		TrackID:        s.TrackOrEmpty(),
		Amount:         p.Amount,
		At:             uc.now(),
	})
}

func (uc *subscriptionUC) Link(ctx context.Context, userID, paymentID, trackID string) (*model.Subscription, error) {
	if userID == "" || paymentID == "" || trackID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, uc.log).With().Str("payment_id", paymentID).Logger()

	p, err := uc.payments.FindByID(ctx, paymentID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrPaymentNotFound
	}
	if !p.IsCompleted() {
		return nil, fmt.Errorf("%w: payment is %s", domain.ErrInvalidArgument, p.Status)
	}
	if p.HasTrack() {
		if p.TrackOrEmpty() != trackID {
			return nil, domain.ErrAlreadyLinked
		}
		// Repeated link to the same track returns the current window.
		s, err := uc.subs.FindActiveByUserAndTrack(ctx, userID, trackID)
		if isNotFound(err) {
			return nil, domain.ErrNoActiveSubscription
		}
		return s, err
	}

	tmp, err := uc.temporaryFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if _, err := uc.subs.FindActiveByUserAndTrack(ctx, userID, trackID); err == nil {
		return nil, fmt.Errorf("%w: track already has an active subscription", domain.ErrAlreadyLinked)
	} else if !isNotFound(err) {
		return nil, err
	}

	// The window moves first; the payment only follows once the track is
	// really held, so a refused link leaves both sides unlinked.
	tmp.TrackID = &trackID
	tmp.UpdatedAt = uc.now()
	if err := uc.subs.Update(ctx, tmp); err != nil {
		switch {
		case domain.IsStaleWrite(err):
			return nil, fmt.Errorf("%w: %v", domain.ErrRetryable, err)
		case domain.IsConflict(err):
			return nil, fmt.Errorf("%w: %v", domain.ErrAlreadyLinked, err)
		}
		return nil, err
	}
	if err := uc.linkPayment(ctx, p.ID, trackID); err != nil {
		uc.unlink(ctx, tmp, &log)
		return nil, err
	}
	log.Info().Str("subscription_id", tmp.ID).Str("track_id", trackID).Msg("temporary subscription linked")
	p.TrackID = &trackID
	uc.resolved(ctx, tmp, p, "linked", adapter.AuditSubscriptionLinked)
	return tmp, nil
}

// linkPayment sets the payment's track once. Losing to a link onto the same
// track is fine; any other track is ErrAlreadyLinked.
func (uc *subscriptionUC) linkPayment(ctx context.Context, paymentID, trackID string) error {
	ok, err := uc.payments.SetTrackIfEmpty(ctx, paymentID, trackID)
	if err != nil || ok {
		return err
	}
	cur, err := uc.payments.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if cur.TrackOrEmpty() != trackID {
		return domain.ErrAlreadyLinked
	}
	return nil
}

// unlink puts a window back to temporary after its payment could not follow.
func (uc *subscriptionUC) unlink(ctx context.Context, s *model.Subscription, log *zerolog.Logger) {
	s.TrackID = nil
	s.UpdatedAt = uc.now()
	if err := uc.subs.Update(ctx, s); err != nil {
		log.Error().Err(err).Str("subscription_id", s.ID).Msg("revert temporary subscription link")
	}
}

// temporaryFor prefers the temporary window p funded, else the newest one.
func (uc *subscriptionUC) temporaryFor(ctx context.Context, p *model.Payment) (*model.Subscription, error) {
	s, err := uc.subs.FindByPaymentID(ctx, p.ID)
	if err == nil && s.Active && s.IsTemporary() && s.UserID == p.UserID {
		return s, nil
	}
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	s, err = uc.subs.FindLatestActiveTemporary(ctx, p.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, err
	}
	return s, nil
}

func (uc *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	n, err := uc.subs.DeactivateExpired(ctx, uc.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		publish(ctx, uc.audit, uc.log, adapter.AuditEvent{
			Type:  adapter.AuditSubscriptionsExpired,
			Count: n,
			At:    uc.now(),
		})
	}
	if active, err := uc.subs.CountActive(ctx); err == nil {
		metrics.SetSubscriptionsActive(active)
	}
	return n, nil
}
