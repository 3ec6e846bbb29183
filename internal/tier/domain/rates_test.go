package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformCutPercentageIsStepFunction(t *testing.T) {
	cases := []struct {
		level SDRLevel
		want  string
	}{
		{level: 0, want: "0.05"},
		{level: 1, want: "0.05"},
		{level: 2, want: "0.04"},
		{level: 3, want: "0.025"},
		{level: 7, want: "0.025"},
	}
	for _, tc := range cases {
		got := PlatformCutPercentage(tc.level)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "level %d: got %s", tc.level, got)
	}
}

func TestRatesForKnownTiers(t *testing.T) {
	rates, err := RatesFor(TierStarter)
	require.NoError(t, err)
	assert.Equal(t, 2, rates.MaxSDRSeats)
	assert.True(t, rates.AgencyRakePercentage.Equal(decimal.RequireFromString("0.02")))

	_, err = RatesFor(SubscriptionTier("platinum"))
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestAllowsSeats(t *testing.T) {
	starter, _ := RatesFor(TierStarter)
	assert.True(t, starter.AllowsSeats(2))
	assert.False(t, starter.AllowsSeats(3))

	enterprise, _ := RatesFor(TierEnterprise)
	assert.True(t, enterprise.AllowsSeats(500))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Growth ")
	require.NoError(t, err)
	assert.Equal(t, TierGrowth, tier)

	_, err = ParseTier("")
	assert.ErrorIs(t, err, ErrUnknownTier)
}
