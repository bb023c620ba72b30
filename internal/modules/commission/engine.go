// Package commission pays the instant and team-builder bonuses triggered by a new investment.
package commission

import (
	"context"
	"fmt"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/settings"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RateSource provides the global commission tables
type RateSource interface {
	InstantRates() (settings.InstantRates, error)
	TeamBuilderRates() ([]decimal.Decimal, error)
}

// AssetRates resolves a per-asset team-builder override; nil means "use the global table"
type AssetRates interface {
	GetTeamBuilderRates(ctx context.Context, assetID string) ([]decimal.Decimal, error)
}

// EventAppender appends ledger events as one unit
type EventAppender interface {
	AppendBatch(ctx context.Context, events []*domain.LedgerEvent) ([]int64, error)
}

// BonusRecorder stores bonus audit rows
type BonusRecorder interface {
	Record(ctx context.Context, b *domain.Bonus) (int64, error)
}

// Uplines is the read-only referral view the engine walks
type Uplines interface {
	User(id string) *domain.User
	UplineChain(id string, maxDepth int) []string
}

// Result summarizes one commission run
type Result struct {
	BatchID string          `json:"batch_id"`
	Bonuses []domain.Bonus  `json:"bonuses"`
	Total   decimal.Decimal `json:"total"`
}

// Engine computes commission payouts for investments.
// Bind it to transaction-scoped repositories so a failed payout rolls back
// together with the investment that triggered it.
type Engine struct {
	events  EventAppender
	bonuses BonusRecorder
	assets  AssetRates
	rates   RateSource
	log     zerolog.Logger
}

// NewEngine creates a commission engine
func NewEngine(events EventAppender, bonuses BonusRecorder, assets AssetRates, rates RateSource, log zerolog.Logger) *Engine {
	return &Engine{
		events:  events,
		bonuses: bonuses,
		assets:  assets,
		rates:   rates,
		log:     log.With().Str("component", "commission").Logger(),
	}
}

type payout struct {
	userID    string
	bonusType domain.BonusType
	role      string
	level     int
	rate      decimal.Decimal
	amount    decimal.Decimal
}

// Pay computes and appends every bonus owed for inv.
// Investments funded by reinvested profit pay nothing.
func (e *Engine) Pay(ctx context.Context, graph Uplines, inv *domain.Investment) (*Result, error) {
	result := &Result{Total: decimal.Zero}
	if inv.Source != domain.SourceDeposit {
		e.log.Debug().
			Int64("investment_id", inv.ID).
			Str("source", string(inv.Source)).
			Msg("No commission for reinvested profit")
		return result, nil
	}

	investor := graph.User(inv.UserID)
	if investor == nil {
		return nil, domain.Invalid("user_id", fmt.Errorf("%w: %s", domain.ErrUnknownUser, inv.UserID))
	}

	instant, err := e.rates.InstantRates()
	if err != nil {
		return nil, fmt.Errorf("failed to load instant rates: %w", err)
	}
	table, err := e.teamBuilderTable(ctx, inv.AssetID)
	if err != nil {
		return nil, err
	}

	payouts := e.instantPayouts(graph, investor, instant, inv.Amount)
	payouts = append(payouts, e.teamBuilderPayouts(graph, investor.ID, table, inv.Amount)...)

	result.BatchID = uuid.New().String()
	sourceID := SourceID(inv.ID)

	var (
		events []*domain.LedgerEvent
		kept   []payout
	)
	for _, p := range payouts {
		if p.amount.IsZero() {
			continue
		}
		kept = append(kept, p)
		events = append(events, &domain.LedgerEvent{
			UserID:       p.userID,
			Kind:         domain.KindBonus,
			BonusType:    p.bonusType,
			Amount:       p.amount,
			Date:         inv.StartDate,
			InvestmentID: &inv.ID,
			SourceID:     sourceID,
		})
	}
	if len(events) == 0 {
		return result, nil
	}

	ids, err := e.events.AppendBatch(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("failed to append commission events: %w", err)
	}

	for i, p := range kept {
		bonus := domain.Bonus{
			Type:     p.bonusType,
			Level:    p.level,
			Role:     p.role,
			UserID:   p.userID,
			SourceID: sourceID,
			Amount:   events[i].Amount,
			Date:     events[i].Date,
			EventID:  ids[i],
			BatchID:  result.BatchID,
			Details: domain.BonusDetails{
				Rate:         p.rate.String(),
				BaseAmount:   inv.Amount.String(),
				InvestmentID: inv.ID,
				AssetID:      inv.AssetID,
			},
		}
		if _, err := e.bonuses.Record(ctx, &bonus); err != nil {
			return nil, err
		}
		result.Bonuses = append(result.Bonuses, bonus)
		result.Total = result.Total.Add(bonus.Amount)
	}

	e.log.Info().
		Int64("investment_id", inv.ID).
		Str("batch_id", result.BatchID).
		Int("payouts", len(result.Bonuses)).
		Str("total", result.Total.String()).
		Msg("Commission paid")

	return result, nil
}

// SourceID is the source reference stamped on every bonus paid for an investment
func SourceID(investmentID int64) string {
	return fmt.Sprintf("investment:%d", investmentID)
}

func (e *Engine) teamBuilderTable(ctx context.Context, assetID string) ([]decimal.Decimal, error) {
	override, err := e.assets.GetTeamBuilderRates(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team builder rates for %s: %w", assetID, err)
	}
	if len(override) > 0 {
		return override, nil
	}

	table, err := e.rates.TeamBuilderRates()
	if err != nil {
		return nil, fmt.Errorf("failed to load team builder rates: %w", err)
	}
	return table, nil
}

func (e *Engine) instantPayouts(graph Uplines, investor *domain.User, rates settings.InstantRates, amount decimal.Decimal) []payout {
	payouts := []payout{{
		userID:    investor.ID,
		bonusType: domain.BonusInstant,
		role:      domain.RoleInvestor,
		rate:      rates.Investor,
		amount:    domain.Round(rates.Investor.Mul(amount)),
	}}

	if ref := investor.Referrer(); ref != nil && e.payable(graph, *ref) {
		payouts = append(payouts, payout{
			userID:    *ref,
			bonusType: domain.BonusInstant,
			role:      domain.RoleReferrer,
			rate:      rates.Referrer,
			amount:    domain.Round(rates.Referrer.Mul(amount)),
		})
	}

	if investor.UplineID != nil && e.payable(graph, *investor.UplineID) {
		payouts = append(payouts, payout{
			userID:    *investor.UplineID,
			bonusType: domain.BonusInstant,
			role:      domain.RoleUpline,
			rate:      rates.Upline,
			amount:    domain.Round(rates.Upline.Mul(amount)),
		})
	}

	return payouts
}

func (e *Engine) teamBuilderPayouts(graph Uplines, investorID string, table []decimal.Decimal, amount decimal.Decimal) []payout {
	chain := graph.UplineChain(investorID, domain.TeamBuilderLevels)

	var payouts []payout
	for i, ancestor := range chain {
		if i >= len(table) {
			break
		}
		if !e.payable(graph, ancestor) {
			continue
		}
		payouts = append(payouts, payout{
			userID:    ancestor,
			bonusType: domain.BonusTeamBuilder,
			level:     i + 1,
			rate:      table[i],
			amount:    domain.Round(table[i].Mul(amount)),
		})
	}
	return payouts
}

func (e *Engine) payable(graph Uplines, userID string) bool {
	if graph.User(userID) != nil {
		return true
	}
	e.log.Warn().Str("user_id", userID).Msg("Skipping payout to unknown user")
	return false
}
