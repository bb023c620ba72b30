package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// BonusRepository stores the audit trail behind bonus ledger events.
// Every row references exactly one ledger event of kind bonus.
type BonusRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewBonusRepository creates a new bonus repository
func NewBonusRepository(db database.Querier, log zerolog.Logger) *BonusRepository {
	return &BonusRepository{
		db:  db,
		log: log.With().Str("repo", "bonuses").Logger(),
	}
}

// WithTx returns a repository bound to q
func (r *BonusRepository) WithTx(q database.Querier) *BonusRepository {
	return &BonusRepository{db: q, log: r.log}
}

// BonusFilter narrows ListBonuses results. Zero values mean "any".
type BonusFilter struct {
	UserID   string
	Type     domain.BonusType
	SourceID string
	BatchID  string
	Limit    int
}

// Record inserts a bonus audit row. The matching ledger event must already exist.
func (r *BonusRepository) Record(ctx context.Context, b *domain.Bonus) (int64, error) {
	details, err := msgpack.Marshal(&b.Details)
	if err != nil {
		return 0, fmt.Errorf("failed to encode bonus details: %w", err)
	}

	b.Amount = domain.Round(b.Amount)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO bonuses (type, level, role, user_id, source_id, amount, date, event_id, batch_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(b.Type),
		b.Level,
		b.Role,
		b.UserID,
		b.SourceID,
		domain.FormatAmount(b.Amount),
		b.Date.Unix(),
		b.EventID,
		b.BatchID,
		details,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record %s bonus for %s: %w", b.Type, b.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	b.ID = id
	return id, nil
}

// ListBonuses returns bonuses matching filter, newest first
func (r *BonusRepository) ListBonuses(ctx context.Context, filter BonusFilter) ([]domain.Bonus, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.SourceID != "" {
		conds = append(conds, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.BatchID != "" {
		conds = append(conds, "batch_id = ?")
		args = append(args, filter.BatchID)
	}

	query := `SELECT id, type, level, role, user_id, source_id, amount, date, event_id, batch_id, details FROM bonuses`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bonuses: %w", err)
	}
	defer rows.Close()

	bonuses := make([]domain.Bonus, 0)
	for rows.Next() {
		var (
			b               domain.Bonus
			bonusType, amnt string
			date            int64
			details         []byte
		)
		if err := rows.Scan(&b.ID, &bonusType, &b.Level, &b.Role, &b.UserID, &b.SourceID, &amnt, &date, &b.EventID, &b.BatchID, &details); err != nil {
			return nil, fmt.Errorf("failed to scan bonus: %w", err)
		}
		if b.Amount, err = domain.ParseAmount(amnt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := msgpack.Unmarshal(details, &b.Details); err != nil {
				r.log.Warn().Err(err).Int64("bonus_id", b.ID).Msg("Failed to decode bonus details")
			}
		}
		b.Type = domain.BonusType(bonusType)
		b.Date = time.Unix(date, 0).UTC()
		bonuses = append(bonuses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bonuses: %w", err)
	}

	return bonuses, nil
}

// CountBySource returns how many bonuses of type were paid for sourceID
func (r *BonusRepository) CountBySource(ctx context.Context, bonusType domain.BonusType, sourceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bonuses WHERE type = ? AND source_id = ?",
		string(bonusType), sourceID,
	).Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to count bonuses: %w", err)
	}
	return n, nil
}
