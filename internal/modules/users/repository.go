// Package users provides the repository for ledger account holders.
// Users live in ledger.db next to the events that reference them.
package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles user persistence.
// The cached total_investment column is only mutated through AddTotalInvestment,
// which the ledger write path calls in the same transaction as the event append.
type Repository struct {
	db  database.Querier // ledger.db connection or an open transaction
	log zerolog.Logger
}

// NewRepository creates a new user repository.
//
// Parameters:
//   - db: ledger.db connection (or transaction)
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

// WithTx returns a repository bound to q, typically an open transaction
func (r *Repository) WithTx(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

const userColumns = `id, upline_id, referrer_id, rank_level, total_investment, join_date, frozen, qualified_at, created_at`

// Create inserts a new user.
// Returns ErrDuplicateUser if the id is taken.
func (r *Repository) Create(ctx context.Context, u *domain.User) error {
	exists, err := r.Exists(ctx, u.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrDuplicateUser)
	}

	if u.Rank == 0 {
		u.Rank = domain.MinRank
	}
	u.CreatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		u.ID,
		nullString(u.UplineID),
		nullString(u.ReferrerID),
		u.Rank,
		domain.FormatAmount(u.TotalInvestment),
		u.JoinDate.Unix(),
		boolToInt(u.Frozen),
		nullTime(u.QualifiedAt),
		u.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", u.ID, err)
	}

	return nil
}

// Exists reports whether a user with the given id exists
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user %s: %w", id, err)
	}
	return true, nil
}

// Get retrieves a user by id.
// Returns nil if the user doesn't exist (not an error).
func (r *Repository) Get(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

// List returns every user ordered by join date
func (r *Repository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY join_date, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return result, nil
}

// AddTotalInvestment adds delta to the cached total_investment
func (r *Repository) AddTotalInvestment(ctx context.Context, id string, delta decimal.Decimal) error {
	var current string
	err := r.db.QueryRowContext(ctx, "SELECT total_investment FROM users WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("user %s: %w", id, domain.ErrUnknownUser)
	}
	if err != nil {
		return fmt.Errorf("failed to read total investment for %s: %w", id, err)
	}

	total, err := domain.ParseAmount(current)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE users SET total_investment = ? WHERE id = ?",
		domain.FormatAmount(total.Add(delta)), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update total investment for %s: %w", id, err)
	}
	return nil
}

// MarkQualified records the user's first qualifying investment date.
// Later calls leave the original date untouched.
func (r *Repository) MarkQualified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET qualified_at = ? WHERE id = ? AND qualified_at IS NULL",
		at.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark user %s qualified: %w", id, err)
	}
	return nil
}

// SetRank overwrites the user's rank level
func (r *Repository) SetRank(ctx context.Context, id string, rank int) error {
	return r.update(ctx, id, "UPDATE users SET rank_level = ? WHERE id = ?", rank, id)
}

// SetFrozen toggles whether the user counts towards downline thresholds
func (r *Repository) SetFrozen(ctx context.Context, id string, frozen bool) error {
	return r.update(ctx, id, "UPDATE users SET frozen = ? WHERE id = ?", boolToInt(frozen), id)
}

func (r *Repository) update(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrUnknownUser)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		u                   domain.User
		upline, referrer    sql.NullString
		total               string
		joinDate, createdAt int64
		frozen              int
		qualifiedAt         sql.NullInt64
	)

	if err := s.Scan(&u.ID, &upline, &referrer, &u.Rank, &total, &joinDate, &frozen, &qualifiedAt, &createdAt); err != nil {
		return nil, err
	}

	amount, err := domain.ParseAmount(total)
	if err != nil {
		return nil, err
	}

	u.TotalInvestment = amount
	u.JoinDate = time.Unix(joinDate, 0).UTC()
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.Frozen = frozen != 0
	if upline.Valid {
		u.UplineID = &upline.String
	}
	if referrer.Valid {
		u.ReferrerID = &referrer.String
	}
	if qualifiedAt.Valid {
		t := time.Unix(qualifiedAt.Int64, 0).UTC()
		u.QualifiedAt = &t
	}

	return &u, nil
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
