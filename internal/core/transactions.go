package core

import (
	"context"
	"fmt"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/events"
	"github.com/aristath/tierledger/internal/modules/balance"
	"github.com/aristath/tierledger/internal/modules/ledger"
	"github.com/shopspring/decimal"
)

// Balance is a user's projected position
type Balance struct {
	UserID    string          `json:"user_id"`
	Deposit   decimal.Decimal `json:"deposit_balance"`
	Profit    decimal.Decimal `json:"profit_balance"`
	Total     decimal.Decimal `json:"total_balance"`
	Available decimal.Decimal `json:"available_balance"`
}

// Adjustment is a manual credit or debit made by an admin
type Adjustment struct {
	Kind         domain.EventKind `json:"kind"` // manual_bonus or manual_deduction
	Amount       decimal.Decimal  `json:"amount"`
	Reason       string           `json:"reason"`
	InvestmentID *int64           `json:"investment_id,omitempty"`
}

// Deposit records a pending deposit request dated today
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*domain.LedgerEvent, error) {
	return s.request(ctx, userID, domain.KindDeposit, amount)
}

// Withdraw records a pending withdrawal request. The amount must be covered by
// the available balance, which already excludes other pending withdrawals.
func (s *Service) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*domain.LedgerEvent, error) {
	return s.request(ctx, userID, domain.KindWithdrawal, amount)
}

func (s *Service) request(ctx context.Context, userID string, kind domain.EventKind, amount decimal.Decimal) (*domain.LedgerEvent, error) {
	if !amount.IsPositive() {
		return nil, domain.Invalid("amount", domain.ErrNonPositiveAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today, err := s.clock.Today(ctx)
	if err != nil {
		return nil, err
	}

	event := &domain.LedgerEvent{
		UserID: userID,
		Kind:   kind,
		Amount: amount,
		Date:   today,
		Status: domain.StatusPending,
	}

	err = s.inTx(func(r *txRepos) error {
		if _, err := s.activeUser(ctx, r, userID); err != nil {
			return err
		}
		if kind == domain.KindWithdrawal {
			if _, err := requireAvailable(ctx, r, userID, amount, nil); err != nil {
				return err
			}
		}
		_, err := r.events.Append(ctx, event)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("kind", string(kind)).
		Str("amount", event.Amount.String()).
		Msg("Request recorded")
	s.emitAppended(event)
	return event, nil
}

// SetStatus settles a pending deposit or withdrawal.
// Completing an already completed event succeeds without writing anything.
func (s *Service) SetStatus(ctx context.Context, eventID int64, status domain.EventStatus) (*domain.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		event   *domain.LedgerEvent
		changed bool
	)
	err := s.inTx(func(r *txRepos) error {
		var err error
		event, changed, err = r.events.SetStatus(ctx, eventID, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.emit("ledger", &events.LedgerStatusChangedData{EventID: event.ID, UserID: event.UserID, Status: string(event.Status)})
	}
	return event, nil
}

// Adjust appends a manual bonus or deduction. A deduction must be covered by
// the deposit balance; one linked to an investment also counts towards the
// user's total investment.
func (s *Service) Adjust(ctx context.Context, userID string, adj Adjustment) (*domain.LedgerEvent, error) {
	if adj.Kind != domain.KindManualBonus && adj.Kind != domain.KindManualDeduction {
		return nil, domain.Invalid("kind", fmt.Errorf("%w: %q", domain.ErrInvalidKind, adj.Kind))
	}
	if !adj.Amount.IsPositive() {
		return nil, domain.Invalid("amount", domain.ErrNonPositiveAmount)
	}
	if adj.InvestmentID != nil && adj.Kind != domain.KindManualDeduction {
		return nil, domain.Invalid("investment_id", fmt.Errorf("only deductions can reference an investment"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today, err := s.clock.Today(ctx)
	if err != nil {
		return nil, err
	}

	event := &domain.LedgerEvent{
		UserID:       userID,
		Kind:         adj.Kind,
		Amount:       adj.Amount,
		Date:         today,
		InvestmentID: adj.InvestmentID,
		Reason:       adj.Reason,
	}

	err = s.inTx(func(r *txRepos) error {
		if adj.InvestmentID != nil {
			inv, err := r.investments.Get(ctx, *adj.InvestmentID)
			if err != nil {
				return err
			}
			if inv == nil || inv.UserID != userID {
				return domain.Invalid("investment_id", fmt.Errorf("investment %d: %w", *adj.InvestmentID, domain.ErrNotFound))
			}
		}
		if adj.Kind == domain.KindManualDeduction {
			if _, err := requireAvailable(ctx, r, userID, adj.Amount, depositBucket); err != nil {
				return err
			}
		}
		if _, err := r.events.Append(ctx, event); err != nil {
			return err
		}
		if adj.InvestmentID != nil {
			return r.users.AddTotalInvestment(ctx, userID, event.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn().
		Str("user_id", userID).
		Str("kind", string(adj.Kind)).
		Str("amount", event.Amount.String()).
		Str("reason", adj.Reason).
		Msg("Manual adjustment recorded")
	s.emitAppended(event)
	return event, nil
}

// Balance projects a user's deposit and profit balances
func (s *Service) Balance(ctx context.Context, userID string) (*Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.mustGetUser(ctx, userID); err != nil {
		return nil, err
	}
	b, available, err := balance.NewProjector(s.events).Available(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Balance{
		UserID:    userID,
		Deposit:   b.Deposit,
		Profit:    b.Profit,
		Total:     b.Total(),
		Available: available,
	}, nil
}

// History returns ledger events matching filter, newest first
func (s *Service) History(ctx context.Context, filter ledger.Filter) ([]domain.LedgerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.List(ctx, filter)
}

// Bonuses returns bonus audit records matching filter
func (s *Service) Bonuses(ctx context.Context, filter ledger.BonusFilter) ([]domain.Bonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bonuses.ListBonuses(ctx, filter)
}

// activeUser loads a user that may move money
func (s *Service) activeUser(ctx context.Context, r *txRepos, userID string) (*domain.User, error) {
	u, err := r.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.Invalid("user_id", fmt.Errorf("%w: %s", domain.ErrUnknownUser, userID))
	}
	if u.Frozen {
		return nil, domain.Invalid("user_id", fmt.Errorf("%w: %s", domain.ErrUserFrozen, userID))
	}
	return u, nil
}

// requireAvailable checks amount against the available balance and, when
// pick is set, against the bucket it selects. Buckets are read with pending
// withdrawals already applied.
func requireAvailable(ctx context.Context, r *txRepos, userID string, amount decimal.Decimal, pick func(balance.Balances) decimal.Decimal) (balance.Balances, error) {
	b, available, err := balance.NewProjector(r.events).Committed(ctx, userID)
	if err != nil {
		return balance.Balances{}, err
	}
	limit := available
	if pick != nil {
		limit = decimal.Min(limit, pick(b))
	}
	if amount.GreaterThan(limit) {
		return b, fmt.Errorf("%w: requested %s, available %s", domain.ErrInsufficientBalance, domain.Round(amount), domain.Round(limit))
	}
	return b, nil
}

func depositBucket(b balance.Balances) decimal.Decimal { return b.Deposit }

func profitBucket(b balance.Balances) decimal.Decimal { return b.Profit }

func (s *Service) emitAppended(e *domain.LedgerEvent) {
	s.emit("ledger", &events.LedgerEventAppendedData{
		EventID: e.ID,
		UserID:  e.UserID,
		Kind:    string(e.Kind),
		Amount:  e.Amount.String(),
		Status:  string(e.Status),
	})
}
