package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// SubscriptionTier is the agency workspace plan.
type SubscriptionTier string

const (
	TierStarter    SubscriptionTier = "starter"
	TierGrowth     SubscriptionTier = "growth"
	TierScale      SubscriptionTier = "scale"
	TierEnterprise SubscriptionTier = "enterprise"
)

// SDRLevel is the experience level of an SDR, 1 being the entry level.
type SDRLevel int

const (
	SDRLevel1 SDRLevel = 1
	SDRLevel2 SDRLevel = 2
	SDRLevel3 SDRLevel = 3
)

var ErrUnknownTier = errors.New("unknown_subscription_tier")

// TierRates describes what a subscription tier allows and what it costs per closed deal.
// MaxSDRSeats of zero means unlimited.
type TierRates struct {
	MaxSDRSeats          int
	AgencyRakePercentage decimal.Decimal
}

// AllowsSeats reports whether a workspace on this tier may hold n SDRs.
func (r TierRates) AllowsSeats(n int) bool {
	if r.MaxSDRSeats == 0 {
		return true
	}
	return n <= r.MaxSDRSeats
}

var tierRates = map[SubscriptionTier]TierRates{
	TierStarter:    {MaxSDRSeats: 2, AgencyRakePercentage: decimal.RequireFromString("0.02")},
	TierGrowth:     {MaxSDRSeats: 5, AgencyRakePercentage: decimal.RequireFromString("0.015")},
	TierScale:      {MaxSDRSeats: 15, AgencyRakePercentage: decimal.RequireFromString("0.01")},
	TierEnterprise: {MaxSDRSeats: 0, AgencyRakePercentage: decimal.RequireFromString("0.005")},
}

var (
	platformCutLevel1 = decimal.RequireFromString("0.05")
	platformCutLevel2 = decimal.RequireFromString("0.04")
	platformCutLevel3 = decimal.RequireFromString("0.025")
)

func ParseTier(raw string) (SubscriptionTier, error) {
	tier := SubscriptionTier(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := tierRates[tier]; !ok {
		return "", ErrUnknownTier
	}
	return tier, nil
}

func RatesFor(tier SubscriptionTier) (TierRates, error) {
	rates, ok := tierRates[tier]
	if !ok {
		return TierRates{}, ErrUnknownTier
	}
	return rates, nil
}

// PlatformCutPercentage returns the share of an SDR's gross commission the
// platform keeps. Levels at or above 3 share the lowest cut; levels below 1
// are charged as level 1.
func PlatformCutPercentage(level SDRLevel) decimal.Decimal {
	switch {
	case level >= SDRLevel3:
		return platformCutLevel3
	case level == SDRLevel2:
		return platformCutLevel2
	default:
		return platformCutLevel1
	}
}
