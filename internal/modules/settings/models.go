package settings

import (
	"fmt"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Setting keys for commission configuration
const (
	KeyInstantRateInvestor = "instant_rate_investor"
	KeyInstantRateReferrer = "instant_rate_referrer"
	KeyInstantRateUpline   = "instant_rate_upline"
	KeyTeamBuilderRates    = "team_builder_rates"
	KeyAssetGrowthRate     = "asset_growth_rate"
)

// SettingDefaults holds the default value for every configurable setting.
// Values are stored as strings so decimals survive without float rounding.
var SettingDefaults = map[string]string{
	KeyInstantRateInvestor: "0.04",
	KeyInstantRateReferrer: "0.04",
	KeyInstantRateUpline:   "0.03",
	// Level 1 (direct upline) first
	KeyTeamBuilderRates: "0.05,0.03,0.02,0.01,0.01,0.005,0.005,0.005,0.005",
	KeyAssetGrowthRate:  "0.001",
}

// SettingDescriptions documents each setting for the settings API
var SettingDescriptions = map[string]string{
	KeyInstantRateInvestor: "Share of a new investment paid back to the investor",
	KeyInstantRateReferrer: "Share of a new investment paid to the investor's referrer",
	KeyInstantRateUpline:   "Share of a new investment paid to the investor's direct upline",
	KeyTeamBuilderRates:    "Comma-separated team-builder rates for upline levels 1-9",
	KeyAssetGrowthRate:     "Monthly share of total downline investment paid as asset growth",
}

// InstantRates are the three instant-bonus shares of an investment amount
type InstantRates struct {
	Investor decimal.Decimal `json:"investor"`
	Referrer decimal.Decimal `json:"referrer"`
	Upline   decimal.Decimal `json:"upline"`
}

// SettingUpdate is the request body for updating a single setting
type SettingUpdate struct {
	Value string `json:"value"`
}

// ValidateSetting checks that key is known and value parses for it
func ValidateSetting(key, value string) error {
	if _, ok := SettingDefaults[key]; !ok {
		return domain.Invalid("key", fmt.Errorf("unknown setting %q", key))
	}
	if key == KeyTeamBuilderRates {
		if _, err := ParseRateTable(value); err != nil {
			return domain.Invalid(key, err)
		}
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return domain.Invalid(key, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, value))
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return domain.Invalid(key, fmt.Errorf("rate must be between 0 and 1"))
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func optionalDecimal(s string) *decimal.Decimal {
	d := mustDecimal(s)
	return &d
}
