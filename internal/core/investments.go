package core

import (
	"context"
	"fmt"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/events"
	"github.com/aristath/tierledger/internal/modules/commission"
	"github.com/shopspring/decimal"
)

// InvestRequest opens a position in an asset
type InvestRequest struct {
	UserID  string                  `json:"user_id"`
	AssetID string                  `json:"asset_id"`
	Amount  decimal.Decimal         `json:"amount"`
	Source  domain.InvestmentSource `json:"source"` // defaults to deposit
}

// InvestResult is everything one investment wrote
type InvestResult struct {
	Investment *domain.Investment  `json:"investment"`
	Event      *domain.LedgerEvent `json:"event"`
	Commission *commission.Result  `json:"commission"`
}

// Invest validates and opens an investment.
//
// The amount must reach the asset minimum and be covered by the deposit
// balance (or the profit balance for reinvestments). In one transaction it
// creates the position, appends the Investment or Reinvestment event, updates
// the user's total investment and qualification date, and pays commission for
// deposit-funded investments. If any step fails nothing is written.
func (s *Service) Invest(ctx context.Context, req InvestRequest) (*InvestResult, error) {
	if req.Source == "" {
		req.Source = domain.SourceDeposit
	}
	if req.Source != domain.SourceDeposit && req.Source != domain.SourceProfitReinvestment {
		return nil, domain.Invalid("source", fmt.Errorf("unknown investment source %q", req.Source))
	}
	if !req.Amount.IsPositive() {
		return nil, domain.Invalid("amount", domain.ErrNonPositiveAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today, err := s.clock.Today(ctx)
	if err != nil {
		return nil, err
	}

	result := &InvestResult{}
	err = s.inTx(func(r *txRepos) error {
		if _, err := s.activeUser(ctx, r, req.UserID); err != nil {
			return err
		}

		asset, err := r.assets.Get(ctx, req.AssetID)
		if err != nil {
			return err
		}
		if asset == nil {
			return domain.Invalid("asset_id", fmt.Errorf("%w: %s", domain.ErrUnknownAsset, req.AssetID))
		}
		if req.Amount.LessThan(asset.MinInvestment) {
			return domain.Invalid("amount", fmt.Errorf("%w: %s requires at least %s", domain.ErrBelowMinimum, asset.ID, asset.MinInvestment))
		}

		kind := domain.KindInvestment
		bucket := depositBucket
		if req.Source == domain.SourceProfitReinvestment {
			kind = domain.KindReinvestment
			bucket = profitBucket
		}
		if _, err := requireAvailable(ctx, r, req.UserID, req.Amount, bucket); err != nil {
			return err
		}

		inv := &domain.Investment{
			UserID:            req.UserID,
			AssetID:           asset.ID,
			Amount:            req.Amount,
			Status:            domain.InvestmentActive,
			TotalProfitEarned: decimal.Zero,
			Source:            req.Source,
			StartDate:         today,
		}
		if _, err := r.investments.Create(ctx, inv); err != nil {
			return err
		}

		event := &domain.LedgerEvent{
			UserID:       req.UserID,
			Kind:         kind,
			Amount:       inv.Amount,
			Date:         today,
			InvestmentID: &inv.ID,
			SourceID:     commission.SourceID(inv.ID),
		}
		if _, err := r.events.Append(ctx, event); err != nil {
			return err
		}
		if err := r.investments.SetEventID(ctx, inv.ID, event.ID); err != nil {
			return err
		}
		inv.EventID = event.ID

		if err := r.users.AddTotalInvestment(ctx, req.UserID, inv.Amount); err != nil {
			return err
		}
		if err := r.users.MarkQualified(ctx, req.UserID, today); err != nil {
			return err
		}

		graph, err := r.graph(ctx)
		if err != nil {
			return err
		}
		paid, err := r.commission(s).Pay(ctx, graph, inv)
		if err != nil {
			return fmt.Errorf("commission for investment %d failed: %w", inv.ID, err)
		}

		result.Investment = inv
		result.Event = event
		result.Commission = paid
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("investment_id", result.Investment.ID).
		Str("user_id", req.UserID).
		Str("asset_id", req.AssetID).
		Str("amount", result.Investment.Amount.String()).
		Str("source", string(req.Source)).
		Msg("Investment opened")

	s.emitAppended(result.Event)
	s.emit("investments", &events.InvestmentData{
		InvestmentID: result.Investment.ID,
		UserID:       req.UserID,
		AssetID:      req.AssetID,
		Amount:       result.Investment.Amount.String(),
		Source:       string(req.Source),
	})
	if len(result.Commission.Bonuses) > 0 {
		s.emit("commission", &events.CommissionPaidData{
			InvestmentID: result.Investment.ID,
			BatchID:      result.Commission.BatchID,
			Payouts:      len(result.Commission.Bonuses),
			Total:        result.Commission.Total.String(),
		})
	}
	return result, nil
}

// CompleteInvestment soft-closes an active investment; it stops accruing.
func (s *Service) CompleteInvestment(ctx context.Context, id int64) (*domain.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inv *domain.Investment
	err := s.inTx(func(r *txRepos) error {
		var err error
		inv, err = r.investments.Complete(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("investment_id", id).Str("user_id", inv.UserID).Msg("Investment completed")
	s.emit("investments", &events.InvestmentData{
		InvestmentID: inv.ID,
		UserID:       inv.UserID,
		AssetID:      inv.AssetID,
		Amount:       inv.Amount.String(),
		Source:       string(inv.Source),
		Completed:    true,
	})
	return inv, nil
}

// Investments lists a user's positions
func (s *Service) Investments(ctx context.Context, userID string) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.mustGetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.investments.ListByUser(ctx, userID)
}
