package rankcycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/rs/zerolog"
)

// Repository stores the per-user watermark of processed rank cycles in ledger.db
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new watermark repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "rank_cycles").Logger(),
	}
}

// WithTx returns a repository bound to q
func (r *Repository) WithTx(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// IsProcessed reports whether the user's cycle for month has already run
func (r *Repository) IsProcessed(ctx context.Context, userID, month string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM rank_cycles WHERE user_id = ? AND month = ?",
		userID, month,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read watermark for %s/%s: %w", userID, month, err)
	}
	return true, nil
}

// MarkProcessed writes the watermark; the primary key rejects a second write for the same month
func (r *Repository) MarkProcessed(ctx context.Context, userID, month, runID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO rank_cycles (user_id, month, run_id, processed_at) VALUES (?, ?, ?, ?)",
		userID, month, runID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write watermark for %s/%s: %w", userID, month, err)
	}
	return nil
}
