package model

import (
	"time"

	"track-billing/internal/domain"
)

// UsageKind selects the metered counter family.
type UsageKind string

const (
	UsageDaily   UsageKind = "daily"   // interactive chat turns, keyed by calendar day
	UsageMonthly UsageKind = "monthly" // generation calls, keyed by calendar month
)

func ParseUsageKind(s string) (UsageKind, error) {
	switch UsageKind(s) {
	case UsageDaily:
		return UsageDaily, nil
	case UsageMonthly:
		return UsageMonthly, nil
	}
	return "", domain.ErrInvalidArgument
}

// PeriodKey returns the counter key for t: "2006-01-02" for daily, "2006-01" for monthly.
func (k UsageKind) PeriodKey(t time.Time) string {
	t = t.UTC()
	if k == UsageMonthly {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// UsageTracking is the metered consumption ledger paired 1:1 with a subscription.
// Counters are unit -> period key -> count.
type UsageTracking struct {
	ID             string
	UserID         string
	SubscriptionID string
	TracksSaved    int
	Daily          map[string]map[string]int
	Monthly        map[string]map[string]int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewUsageTracking(id string, sub *Subscription) (*UsageTracking, error) {
	if id == "" || sub == nil || sub.ID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &UsageTracking{
		ID:             id,
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Daily:          map[string]map[string]int{},
		Monthly:        map[string]map[string]int{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Count reads a counter; missing keys read as zero.
func (u *UsageTracking) Count(kind UsageKind, unitID, periodKey string) int {
	m := u.Daily
	if kind == UsageMonthly {
		m = u.Monthly
	}
	return m[unitID][periodKey]
}
