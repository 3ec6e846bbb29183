// Package settlement splits a closed deal's value between the agency, the SDR
// and the platform.
package settlement

import (
	"strings"

	"github.com/shopspring/decimal"

	tierdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/tier/domain"
)

const minorUnitPlaces = 2

type Input struct {
	DealValue decimal.Decimal
	// CommissionPercentage is the job posting's SDR commission as a fraction (0.10 = 10%).
	CommissionPercentage decimal.Decimal
	SDRLevel             tierdomain.SDRLevel
	// AgencyRakePercentage comes from the workspace subscription tier, as a fraction.
	AgencyRakePercentage decimal.Decimal
	IsAgencySelfClosed   bool
}

// Breakdown is the money split of a single deal. Values returned by Calculate
// are unrounded; call Rounded before persisting or transferring.
type Breakdown struct {
	AgencyRake            decimal.Decimal `json:"agency_rake"`
	SDRGrossCommission    decimal.Decimal `json:"sdr_gross_commission"`
	PlatformCutPercentage decimal.Decimal `json:"platform_cut_percentage"`
	PlatformCutAmount     decimal.Decimal `json:"platform_cut_amount"`
	SDRNetPayout          decimal.Decimal `json:"sdr_net_payout"`
	TotalAgencyOwed       decimal.Decimal `json:"total_agency_owed"`
}

func Calculate(in Input) Breakdown {
	agencyRake := in.DealValue.Mul(in.AgencyRakePercentage)

	if in.IsAgencySelfClosed {
		return Breakdown{
			AgencyRake:            agencyRake,
			SDRGrossCommission:    decimal.Zero,
			PlatformCutPercentage: decimal.Zero,
			PlatformCutAmount:     decimal.Zero,
			SDRNetPayout:          decimal.Zero,
			TotalAgencyOwed:       agencyRake,
		}
	}

	gross := in.DealValue.Mul(in.CommissionPercentage)
	cutPct := tierdomain.PlatformCutPercentage(in.SDRLevel)
	cut := gross.Mul(cutPct)

	return Breakdown{
		AgencyRake:            agencyRake,
		SDRGrossCommission:    gross,
		PlatformCutPercentage: cutPct,
		PlatformCutAmount:     cut,
		SDRNetPayout:          gross.Sub(cut),
		TotalAgencyOwed:       agencyRake.Add(gross),
	}
}

// Rounded rounds the breakdown to cents. Net payout and total owed are derived
// from the rounded parts so gross = cut + net and total = rake + gross still hold.
func (b Breakdown) Rounded() Breakdown {
	rake := RoundMoney(b.AgencyRake)
	gross := RoundMoney(b.SDRGrossCommission)
	cut := RoundMoney(b.PlatformCutAmount)
	return Breakdown{
		AgencyRake:            rake,
		SDRGrossCommission:    gross,
		PlatformCutPercentage: b.PlatformCutPercentage,
		PlatformCutAmount:     cut,
		SDRNetPayout:          gross.Sub(cut),
		TotalAgencyOwed:       rake.Add(gross),
	}
}

// PlatformRevenue is what the platform keeps from the deal.
func (b Breakdown) PlatformRevenue() decimal.Decimal {
	return b.AgencyRake.Add(b.PlatformCutAmount)
}

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(minorUnitPlaces)
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(d decimal.Decimal) int64 {
	return RoundMoney(d).Shift(minorUnitPlaces).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorUnitPlaces)
}

// FormatMoney renders an amount for notifications, e.g. "$1,200.00" or "1,200.00 EUR".
func FormatMoney(d decimal.Decimal, currency string) string {
	fixed := RoundMoney(d).StringFixed(minorUnitPlaces)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	amount := grouped.String() + "." + frac

	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || code == "USD" {
		return sign + "$" + amount
	}
	return sign + amount + " " + code
}
