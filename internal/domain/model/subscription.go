package model

import (
	"time"

	"track-billing/internal/domain"
)

// Subscription is one entitlement window, scoped to a content track or,
// while TrackID is nil, a temporary entitlement waiting to be linked.
type Subscription struct {
	ID                     string // UUID
	UserID                 string
	TrackID                *string
	Tier                   Tier
	PlanAmount             int64
	StartAt                time.Time
	ExpiresAt              time.Time
	Active                 bool
	PaymentID              string // payment that last funded this window
	DailyChatLimit         int
	MonthlyGenerationLimit int
	TracksSaved            int
	Version                int64 // bumped by every stored write
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewSubscription opens a fresh window funded by p, starting at now.
func NewSubscription(id string, p *Payment, now time.Time) (*Subscription, error) {
	if id == "" || p == nil || p.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	s := &Subscription{
		ID:        id,
		UserID:    p.UserID,
		TrackID:   cloneStr(p.TrackID),
		CreatedAt: now,
	}
	s.Renew(p, now)
	return s, nil
}

// Renew refreshes the window in place from payment p. Limits and tier come
// from the paid amount, never from the payment's tier label. An active record
// keeps its StartAt so module unlocking keeps counting from the first period,
// and the new period is stacked on whatever time is left. Only a record that
// was already deactivated starts over.
func (s *Subscription) Renew(p *Payment, now time.Time) {
	tier := TierForAmount(p.Amount)
	limits := tier.Limits()
	s.Tier = tier
	s.PlanAmount = p.Amount
	s.DailyChatLimit = limits.DailyChat
	s.MonthlyGenerationLimit = limits.MonthlyGeneration
	if s.Active {
		base := s.ExpiresAt
		if now.After(base) {
			base = now
		}
		s.ExpiresAt = base.Add(DefaultPeriod)
	} else {
		s.StartAt = now
		s.ExpiresAt = now.Add(DefaultPeriod)
	}
	s.Active = true
	s.PaymentID = p.ID
	s.TracksSaved = 0
	s.UpdatedAt = now
}

func (s *Subscription) IsTemporary() bool { return s.TrackID == nil || *s.TrackID == "" }

func (s *Subscription) TrackOrEmpty() string {
	if s.TrackID == nil {
		return ""
	}
	return *s.TrackID
}

// IsLive reports whether the window is active and not yet expired at now.
func (s *Subscription) IsLive(now time.Time) bool {
	return s != nil && s.Active && now.Before(s.ExpiresAt)
}

// Limit returns the allowance for a usage kind.
func (s *Subscription) Limit(kind UsageKind) int {
	if kind == UsageMonthly {
		return s.MonthlyGenerationLimit
	}
	return s.DailyChatLimit
}
