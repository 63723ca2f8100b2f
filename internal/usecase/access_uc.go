// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// ModuleState is the gate for one module; its chapters share it.
type ModuleState struct {
	ID         string
	Index      int
	Accessible bool
}

type AccessReport struct {
	TrackID        string
	SubscriptionID string
	Tier           model.Tier
	ExpiresAt      time.Time
	Unlocked       int
	Modules        []ModuleState
}

type AccessUseCase interface {
	TrackAccess(ctx context.Context, userID, trackID string) (*AccessReport, error)
	ModuleAccess(ctx context.Context, userID, trackID string, index int) (bool, error)
}

type accessUC struct {
	subs    repository.SubscriptionRepository
	catalog adapter.ContentCatalog
	now     Clock
	log     *zerolog.Logger
}

func NewAccessUseCase(subs repository.SubscriptionRepository, catalog adapter.ContentCatalog, logger *zerolog.Logger) *accessUC {
	l := logger.With().Str("component", "AccessUC").Logger()
	return &accessUC{subs: subs, catalog: catalog, now: time.Now, log: &l}
}

// WithClock replaces the time source.
func (u *accessUC) WithClock(c Clock) *accessUC {
	u.now = c
	return u
}

// subscriptionFor returns the user's active window on trackID, or nil.
func (u *accessUC) subscriptionFor(ctx context.Context, userID, trackID string) (*model.Subscription, error) {
	if userID == "" || trackID == "" {
		return nil, domain.ErrInvalidArgument
	}
	s, err := u.subs.FindActiveByUserAndTrack(ctx, userID, trackID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	// Temporary or foreign-track windows never open a track.
	if s.TrackOrEmpty() != trackID || s.UserID != userID {
		return nil, nil
	}
	return s, nil
}

// TrackAccess reports which modules of trackID the user may open now. A
// user without a subscription gets a report with every module locked.
func (u *accessUC) TrackAccess(ctx context.Context, userID, trackID string) (*AccessReport, error) {
	s, err := u.subscriptionFor(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}
	modules, err := u.catalog.ModuleIDs(ctx, trackID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	now := u.now()
	report := &AccessReport{TrackID: trackID, Unlocked: model.UnlockedModuleCount(s, now)}
	if s != nil {
		report.SubscriptionID = s.ID
		report.Tier = s.Tier
		report.ExpiresAt = s.ExpiresAt
	}
	report.Modules = make([]ModuleState, len(modules))
	for i, id := range modules {
		report.Modules[i] = ModuleState{ID: id, Index: i, Accessible: i < report.Unlocked}
	}
	return report, nil
}

func (u *accessUC) ModuleAccess(ctx context.Context, userID, trackID string, index int) (bool, error) {
	s, err := u.subscriptionFor(ctx, userID, trackID)
	if err != nil {
		return false, err
	}
	return model.ModuleAccessible(s, index, u.now()), nil
}
