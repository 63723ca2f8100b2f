package model

import (
	"strings"
	"time"

	"track-billing/internal/domain"
)

type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Prices are in the gateway's currency units; the gateway client converts to minor units.
const (
	PriceBasic   int64 = 99
	PricePremium int64 = 199
)

// DefaultPeriod is one renewal period; each full period unlocks one more module.
const DefaultPeriod = 30 * 24 * time.Hour

// TierLimits are the metered allowances attached to a tier.
type TierLimits struct {
	DailyChat         int
	MonthlyGeneration int
}

var tierLimits = map[Tier]TierLimits{
	TierBasic:   {DailyChat: 3, MonthlyGeneration: 3},
	TierPremium: {DailyChat: 10, MonthlyGeneration: 10},
}

// ParseTier validates a client supplied tier label.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierBasic:
		return TierBasic, nil
	case TierPremium:
		return TierPremium, nil
	}
	return "", domain.ErrInvalidArgument
}

func (t Tier) Price() int64 {
	if t == TierPremium {
		return PricePremium
	}
	return PriceBasic
}

func (t Tier) Limits() TierLimits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[TierBasic]
}

// TierForAmount derives the tier from what was actually paid. Amount is the
// single source of truth; stored tier labels are only a cache of this.
func TierForAmount(amount int64) Tier {
	if amount >= PricePremium {
		return TierPremium
	}
	return TierBasic
}
