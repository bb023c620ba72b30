package settings

import (
	"fmt"
	"strings"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/shopspring/decimal"
)

// RateRepository reads and writes the commission rate tables
type RateRepository struct {
	settings *Repository
}

// NewRateRepository creates a rate repository on top of the settings store
func NewRateRepository(settings *Repository) *RateRepository {
	return &RateRepository{settings: settings}
}

// InstantRates returns the investor, referrer and upline shares
func (r *RateRepository) InstantRates() (InstantRates, error) {
	var (
		rates InstantRates
		err   error
	)
	if rates.Investor, err = r.settings.GetDecimal(KeyInstantRateInvestor); err != nil {
		return InstantRates{}, err
	}
	if rates.Referrer, err = r.settings.GetDecimal(KeyInstantRateReferrer); err != nil {
		return InstantRates{}, err
	}
	if rates.Upline, err = r.settings.GetDecimal(KeyInstantRateUpline); err != nil {
		return InstantRates{}, err
	}
	return rates, nil
}

// SetInstantRates stores all three instant shares
func (r *RateRepository) SetInstantRates(rates InstantRates) error {
	for key, value := range map[string]decimal.Decimal{
		KeyInstantRateInvestor: rates.Investor,
		KeyInstantRateReferrer: rates.Referrer,
		KeyInstantRateUpline:   rates.Upline,
	} {
		if err := r.settings.SetDecimal(key, value); err != nil {
			return err
		}
	}
	return nil
}

// TeamBuilderRates returns the global cascade table, level 1 first
func (r *RateRepository) TeamBuilderRates() ([]decimal.Decimal, error) {
	value, err := r.settings.Get(KeyTeamBuilderRates)
	if err != nil {
		return nil, err
	}
	raw := SettingDefaults[KeyTeamBuilderRates]
	if value != nil {
		raw = *value
	}
	return ParseRateTable(raw)
}

// SetTeamBuilderRates stores the global cascade table
func (r *RateRepository) SetTeamBuilderRates(rates []decimal.Decimal) error {
	if len(rates) > domain.TeamBuilderLevels {
		return domain.Invalid(KeyTeamBuilderRates, fmt.Errorf("at most %d levels", domain.TeamBuilderLevels))
	}
	parts := make([]string, len(rates))
	for i, rate := range rates {
		if rate.IsNegative() {
			return domain.Invalid(KeyTeamBuilderRates, domain.ErrInvalidAmount)
		}
		parts[i] = rate.String()
	}
	return r.settings.Set(KeyTeamBuilderRates, strings.Join(parts, ","), nil)
}

// AssetGrowthRate returns the monthly share of downline investment paid as asset growth
func (r *RateRepository) AssetGrowthRate() (decimal.Decimal, error) {
	return r.settings.GetDecimal(KeyAssetGrowthRate)
}

// ParseRateTable parses a comma-separated rate list, one rate per upline level.
// Blank entries are ignored. Tables longer than the cascade depth are rejected.
func ParseRateTable(raw string) ([]decimal.Decimal, error) {
	var rates []decimal.Decimal
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		level := len(rates) + 1
		if level > domain.TeamBuilderLevels {
			return nil, fmt.Errorf("rate table has more than %d levels", domain.TeamBuilderLevels)
		}
		d, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q at level %d: %w", part, level, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("negative rate at level %d", level)
		}
		rates = append(rates, d)
	}
	return rates, nil
}
