// Package accrual appends daily profit-share for active investments.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// daysPerYear converts APY into a daily rate
var daysPerYear = decimal.NewFromInt(365)

var hundred = decimal.NewFromInt(100)

// InvestmentStore lists and updates investment positions
type InvestmentStore interface {
	ListActive(ctx context.Context) ([]domain.Investment, error)
	AddProfit(ctx context.Context, id int64, delta decimal.Decimal) error
}

// EventAppender appends ledger events
type EventAppender interface {
	Append(ctx context.Context, event *domain.LedgerEvent) (int64, error)
}

// APYLookup resolves an asset's current APY in percent
type APYLookup interface {
	GetAPY(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// Report summarizes one accrual run
type Report struct {
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Days     int             `json:"days"`
	Accrued  int             `json:"accrued"`
	Skipped  int             `json:"skipped"`
	Total    decimal.Decimal `json:"total"`
	EventIDs []int64         `json:"event_ids,omitempty"`
}

// Scheduler accrues profit for a span of days.
// A multi-day span produces one ProfitShare event per investment, not one per day.
type Scheduler struct {
	investments InvestmentStore
	events      EventAppender
	assets      APYLookup
	log         zerolog.Logger
}

// NewScheduler creates an accrual scheduler
func NewScheduler(investments InvestmentStore, events EventAppender, assets APYLookup, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		investments: investments,
		events:      events,
		assets:      assets,
		log:         log.With().Str("component", "accrual").Logger(),
	}
}

// DailyProfit is amount × (apy/100) / 365 × days, rounded to storage precision.
// A non-positive APY yields zero.
func DailyProfit(amount, apy decimal.Decimal, days int) decimal.Decimal {
	if !apy.IsPositive() || days <= 0 {
		return decimal.Zero
	}
	numerator := amount.Mul(apy).Mul(decimal.NewFromInt(int64(days)))
	return domain.Round(numerator.Div(hundred.Mul(daysPerYear)))
}

// Run accrues every active investment for the days in [from, to).
// Investments started inside the span accrue from their start date.
// An investment whose asset no longer exists is logged and skipped.
func (s *Scheduler) Run(ctx context.Context, from, to time.Time) (*Report, error) {
	from, to = utils.StartOfDay(from), utils.StartOfDay(to)
	report := &Report{From: from, To: to, Days: daysBetween(from, to), Total: decimal.Zero}
	if report.Days <= 0 {
		return report, nil
	}

	active, err := s.investments.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active investments: %w", err)
	}

	for i := range active {
		inv := &active[i]

		start := from
		if inv.StartDate.After(start) {
			start = inv.StartDate
		}
		days := daysBetween(start, to)
		if days <= 0 {
			continue
		}

		apy, err := s.assets.GetAPY(ctx, inv.AssetID)
		if errors.Is(err, domain.ErrUnknownAsset) {
			s.log.Warn().
				Int64("investment_id", inv.ID).
				Str("asset_id", inv.AssetID).
				Msg("Asset not found, skipping accrual")
			report.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up APY for investment %d: %w", inv.ID, err)
		}

		profit := DailyProfit(inv.Amount, apy, days)
		if !profit.IsPositive() {
			continue
		}

		eventID, err := s.events.Append(ctx, &domain.LedgerEvent{
			UserID:       inv.UserID,
			Kind:         domain.KindProfitShare,
			Amount:       profit,
			Date:         to,
			InvestmentID: &inv.ID,
			SourceID:     inv.AssetID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to append profit share for investment %d: %w", inv.ID, err)
		}
		if err := s.investments.AddProfit(ctx, inv.ID, profit); err != nil {
			return nil, err
		}

		report.Accrued++
		report.Total = report.Total.Add(profit)
		report.EventIDs = append(report.EventIDs, eventID)
	}

	s.log.Info().
		Str("from", utils.FormatDate(from)).
		Str("to", utils.FormatDate(to)).
		Int("accrued", report.Accrued).
		Int("skipped", report.Skipped).
		Str("total", report.Total.String()).
		Msg("Profit accrued")

	return report, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
