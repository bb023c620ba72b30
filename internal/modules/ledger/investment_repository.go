package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InvestmentRepository stores investment positions.
// Positions are never deleted; completion is a soft close.
type InvestmentRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db database.Querier, log zerolog.Logger) *InvestmentRepository {
	return &InvestmentRepository{
		db:  db,
		log: log.With().Str("repo", "investments").Logger(),
	}
}

// WithTx returns a repository bound to q
func (r *InvestmentRepository) WithTx(q database.Querier) *InvestmentRepository {
	return &InvestmentRepository{db: q, log: r.log}
}

const investmentColumns = `id, user_id, asset_id, amount, status, total_profit_earned, source, start_date, event_id, created_at`

// Create inserts an active investment
func (r *InvestmentRepository) Create(ctx context.Context, inv *domain.Investment) (int64, error) {
	if inv.Status == "" {
		inv.Status = domain.InvestmentActive
	}
	inv.Amount = domain.Round(inv.Amount)
	inv.StartDate = utils.StartOfDay(inv.StartDate)
	inv.CreatedAt = time.Now().UTC()

	var eventID interface{}
	if inv.EventID != 0 {
		eventID = inv.EventID
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO investments (user_id, asset_id, amount, status, total_profit_earned, source, start_date, event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.UserID,
		inv.AssetID,
		domain.FormatAmount(inv.Amount),
		string(inv.Status),
		domain.FormatAmount(inv.TotalProfitEarned),
		string(inv.Source),
		inv.StartDate.Unix(),
		eventID,
		inv.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert investment for %s: %w", inv.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	inv.ID = id
	return id, nil
}

// Get retrieves an investment by id.
// Returns nil if it doesn't exist (not an error).
func (r *InvestmentRepository) Get(ctx context.Context, id int64) (*domain.Investment, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+investmentColumns+" FROM investments WHERE id = ?", id)
	inv, err := scanInvestment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment %d: %w", id, err)
	}
	return inv, nil
}

// ListActive returns every active investment ordered by id
func (r *InvestmentRepository) ListActive(ctx context.Context) ([]domain.Investment, error) {
	return r.query(ctx,
		"SELECT "+investmentColumns+" FROM investments WHERE status = ? ORDER BY id",
		string(domain.InvestmentActive),
	)
}

// ListByUser returns a user's investments, oldest first
func (r *InvestmentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Investment, error) {
	return r.query(ctx,
		"SELECT "+investmentColumns+" FROM investments WHERE user_id = ? ORDER BY start_date, id",
		userID,
	)
}

// SetEventID links the investment to the ledger event that funded it
func (r *InvestmentRepository) SetEventID(ctx context.Context, id, eventID int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE investments SET event_id = ? WHERE id = ?", eventID, id)
	if err != nil {
		return fmt.Errorf("failed to link investment %d to event %d: %w", id, eventID, err)
	}
	return nil
}

// AddProfit increases total_profit_earned by a non-negative delta
func (r *InvestmentRepository) AddProfit(ctx context.Context, id int64, delta decimal.Decimal) error {
	if delta.IsNegative() {
		return domain.Invalid("profit", domain.ErrInvalidAmount)
	}

	inv, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv == nil {
		return fmt.Errorf("investment %d: %w", id, domain.ErrNotFound)
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE investments SET total_profit_earned = ? WHERE id = ?",
		domain.FormatAmount(inv.TotalProfitEarned.Add(delta)), id,
	)
	if err != nil {
		return fmt.Errorf("failed to add profit to investment %d: %w", id, err)
	}
	return nil
}

// Complete soft-closes an active investment
func (r *InvestmentRepository) Complete(ctx context.Context, id int64) (*domain.Investment, error) {
	inv, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("investment %d: %w", id, domain.ErrNotFound)
	}
	if inv.Status == domain.InvestmentCompleted {
		return nil, fmt.Errorf("investment %d: %w", id, domain.ErrInvestmentClosed)
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE investments SET status = ? WHERE id = ? AND status = ?",
		string(domain.InvestmentCompleted), id, string(domain.InvestmentActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete investment %d: %w", id, err)
	}

	inv.Status = domain.InvestmentCompleted
	return inv, nil
}

func (r *InvestmentRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Investment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query investments: %w", err)
	}
	defer rows.Close()

	investments := make([]domain.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investments: %w", err)
	}
	return investments, nil
}

func scanInvestment(s scanner) (*domain.Investment, error) {
	var (
		inv                  domain.Investment
		amount, profit       string
		status, source       string
		startDate, createdAt int64
		eventID              sql.NullInt64
	)

	err := s.Scan(&inv.ID, &inv.UserID, &inv.AssetID, &amount, &status, &profit, &source, &startDate, &eventID, &createdAt)
	if err != nil {
		return nil, err
	}

	if inv.Amount, err = domain.ParseAmount(amount); err != nil {
		return nil, err
	}
	if inv.TotalProfitEarned, err = domain.ParseAmount(profit); err != nil {
		return nil, err
	}
	inv.Status = domain.InvestmentStatus(status)
	inv.Source = domain.InvestmentSource(source)
	inv.StartDate = time.Unix(startDate, 0).UTC()
	inv.CreatedAt = time.Unix(createdAt, 0).UTC()
	inv.EventID = eventID.Int64

	return &inv, nil
}
