// Package balance derives account balances from ledger events.
package balance

import (
	"context"
	"fmt"
	"sort"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Balances are the two derived balances of an account
type Balances struct {
	Deposit decimal.Decimal `json:"deposit_balance"`
	Profit  decimal.Decimal `json:"profit_balance"`
}

// Total is deposit plus profit
func (b Balances) Total() decimal.Decimal {
	return b.Deposit.Add(b.Profit)
}

// Project replays events in chronological order (date, then id) and returns
// the resulting balances. Only completed or status-less events count.
// Every debit floors at zero; a shortfall is absorbed, not reported.
func Project(events []domain.LedgerEvent) Balances {
	return project(events, false)
}

// ProjectWithPending is Project with pending withdrawals applied as if
// completed. Spending checks use it so that money already promised to a
// withdrawal cannot be invested again.
func ProjectWithPending(events []domain.LedgerEvent) Balances {
	return project(events, true)
}

func project(events []domain.LedgerEvent, withPending bool) Balances {
	ordered := make([]domain.LedgerEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	b := Balances{Deposit: decimal.Zero, Profit: decimal.Zero}
	for i := range ordered {
		e := &ordered[i]
		if !e.Effective() && !(withPending && pendingWithdrawal(e)) {
			continue
		}

		switch e.Kind {
		case domain.KindDeposit:
			b.Deposit = b.Deposit.Add(e.Amount)
		case domain.KindInvestment, domain.KindManualDeduction:
			b.Deposit = debit(b.Deposit, e.Amount)
		case domain.KindReinvestment:
			b.Profit = debit(b.Profit, e.Amount)
		case domain.KindBonus, domain.KindManualBonus, domain.KindProfitShare:
			b.Profit = b.Profit.Add(e.Amount)
		case domain.KindWithdrawal:
			fromProfit := decimal.Min(b.Profit, e.Amount)
			b.Profit = b.Profit.Sub(fromProfit)
			b.Deposit = debit(b.Deposit, e.Amount.Sub(fromProfit))
		}
	}

	return b
}

func pendingWithdrawal(e *domain.LedgerEvent) bool {
	return e.Kind == domain.KindWithdrawal && e.Status == domain.StatusPending
}

func debit(balance, amount decimal.Decimal) decimal.Decimal {
	out := balance.Sub(amount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// EventSource lists a user's ledger events
type EventSource interface {
	ListByUser(ctx context.Context, userID string) ([]domain.LedgerEvent, error)
}

// Projector computes balances for stored accounts
type Projector struct {
	events EventSource
}

// NewProjector creates a projector reading from events
func NewProjector(events EventSource) *Projector {
	return &Projector{events: events}
}

// Project returns the user's current balances
func (p *Projector) Project(ctx context.Context, userID string) (Balances, error) {
	events, err := p.events.ListByUser(ctx, userID)
	if err != nil {
		return Balances{}, fmt.Errorf("failed to load events for %s: %w", userID, err)
	}
	return Project(events), nil
}

// Available returns what the user may still withdraw or invest: the projected
// total less withdrawals that are pending settlement.
func (p *Projector) Available(ctx context.Context, userID string) (Balances, decimal.Decimal, error) {
	events, err := p.events.ListByUser(ctx, userID)
	if err != nil {
		return Balances{}, decimal.Zero, fmt.Errorf("failed to load events for %s: %w", userID, err)
	}
	return Project(events), available(events), nil
}

// Committed returns the balances left once every pending withdrawal settles,
// together with the available total. Debits are checked against these.
func (p *Projector) Committed(ctx context.Context, userID string) (Balances, decimal.Decimal, error) {
	events, err := p.events.ListByUser(ctx, userID)
	if err != nil {
		return Balances{}, decimal.Zero, fmt.Errorf("failed to load events for %s: %w", userID, err)
	}
	return ProjectWithPending(events), available(events), nil
}

func available(events []domain.LedgerEvent) decimal.Decimal {
	pending := decimal.Zero
	for i := range events {
		if pendingWithdrawal(&events[i]) {
			pending = pending.Add(events[i].Amount)
		}
	}

	out := Project(events).Total().Sub(pending)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
