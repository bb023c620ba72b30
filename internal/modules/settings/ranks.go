package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultRanks is the ladder seeded into an empty config.db
var DefaultRanks = []domain.Rank{
	{Level: 1, MinAccounts: 0, NewlyQualified: 0, FixedBonus: decimal.Zero},
	{Level: 2, MinAccounts: 3, NewlyQualified: 1, FixedBonus: mustDecimal("100")},
	{Level: 3, MinAccounts: 10, NewlyQualified: 2, FixedBonus: mustDecimal("250")},
	{Level: 4, MinAccounts: 25, NewlyQualified: 3, FixedBonus: mustDecimal("500")},
	{Level: 5, MinAccounts: 50, NewlyQualified: 5, FixedBonus: mustDecimal("1000"), MinTotalInvestment: optionalDecimal("1000")},
	{Level: 6, MinAccounts: 100, NewlyQualified: 8, FixedBonus: mustDecimal("2500"), MinTotalInvestment: optionalDecimal("2500")},
	{Level: 7, MinAccounts: 250, NewlyQualified: 12, FixedBonus: mustDecimal("5000"), MinTotalInvestment: optionalDecimal("5000")},
	{Level: 8, MinAccounts: 500, NewlyQualified: 20, FixedBonus: mustDecimal("10000"), MinTotalInvestment: optionalDecimal("10000")},
	{Level: 9, MinAccounts: 1000, NewlyQualified: 30, FixedBonus: mustDecimal("25000"), MinTotalInvestment: optionalDecimal("25000")},
}

// RankRepository handles the rank ladder stored in config.db
type RankRepository struct {
	db  *sql.DB // config.db - ranks table
	log zerolog.Logger
}

// NewRankRepository creates a new rank repository
func NewRankRepository(db *sql.DB, log zerolog.Logger) *RankRepository {
	return &RankRepository{
		db:  db,
		log: log.With().Str("repository", "ranks").Logger(),
	}
}

// SeedDefaults inserts DefaultRanks for levels that are not configured yet
func (r *RankRepository) SeedDefaults(ctx context.Context) error {
	for _, rank := range DefaultRanks {
		if err := r.upsert(ctx, rank, false); err != nil {
			return err
		}
	}
	return nil
}

// List returns the ladder ordered by level.
// Falls back to DefaultRanks when the table is empty.
func (r *RankRepository) List(ctx context.Context) ([]domain.Rank, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT level, min_accounts, newly_qualified, fixed_bonus, min_total_investment
		FROM ranks ORDER BY level
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranks: %w", err)
	}
	defer rows.Close()

	var ranks []domain.Rank
	for rows.Next() {
		var (
			rank     domain.Rank
			fixed    string
			minTotal sql.NullString
		)
		if err := rows.Scan(&rank.Level, &rank.MinAccounts, &rank.NewlyQualified, &fixed, &minTotal); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		if rank.FixedBonus, err = domain.ParseAmount(fixed); err != nil {
			return nil, err
		}
		if minTotal.Valid {
			d, err := domain.ParseAmount(minTotal.String)
			if err != nil {
				return nil, err
			}
			rank.MinTotalInvestment = &d
		}
		ranks = append(ranks, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranks: %w", err)
	}

	if len(ranks) == 0 {
		r.log.Debug().Msg("Rank table empty, using defaults")
		return append([]domain.Rank(nil), DefaultRanks...), nil
	}
	return ranks, nil
}

// Upsert validates and stores a rank level
func (r *RankRepository) Upsert(ctx context.Context, rank domain.Rank) error {
	if rank.Level < domain.MinRank || rank.Level > domain.MaxRank {
		return domain.Invalid("level", domain.ErrInvalidRank)
	}
	if rank.MinAccounts < 0 || rank.NewlyQualified < 0 {
		return domain.Invalid("thresholds", domain.ErrInvalidAmount)
	}
	if rank.FixedBonus.IsNegative() {
		return domain.Invalid("fixed_bonus", domain.ErrInvalidAmount)
	}
	if rank.MinTotalInvestment != nil && rank.MinTotalInvestment.IsNegative() {
		return domain.Invalid("min_total_investment", domain.ErrInvalidAmount)
	}
	return r.upsert(ctx, rank, true)
}

func (r *RankRepository) upsert(ctx context.Context, rank domain.Rank, overwrite bool) error {
	var minTotal interface{}
	if rank.MinTotalInvestment != nil {
		minTotal = domain.FormatAmount(*rank.MinTotalInvestment)
	}

	query := `
		INSERT INTO ranks (level, min_accounts, newly_qualified, fixed_bonus, min_total_investment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if overwrite {
		query += `
		ON CONFLICT(level) DO UPDATE SET
			min_accounts = excluded.min_accounts,
			newly_qualified = excluded.newly_qualified,
			fixed_bonus = excluded.fixed_bonus,
			min_total_investment = excluded.min_total_investment,
			updated_at = excluded.updated_at`
	} else {
		query += ` ON CONFLICT(level) DO NOTHING`
	}

	_, err := r.db.ExecContext(ctx, query,
		rank.Level, rank.MinAccounts, rank.NewlyQualified,
		domain.FormatAmount(rank.FixedBonus), minTotal, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store rank %d: %w", rank.Level, err)
	}
	return nil
}
