// Package ledger provides the append-only transaction ledger.
// Events stored here are the single source of truth for balances; every other
// figure (balances, cached totals) is derived from them.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/rs/zerolog"
)

// txBeginner is satisfied by *sql.DB; batches open their own transaction when
// the repository is not already bound to one.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Repository handles ledger event persistence in ledger.db.
// Events are immutable once appended; the only permitted mutation is a single
// status transition from pending for deposits and withdrawals.
type Repository struct {
	db  database.Querier // ledger.db connection or an open transaction
	log zerolog.Logger
}

// NewRepository creates a new ledger repository.
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
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// WithTx returns a repository bound to q, typically an open transaction
func (r *Repository) WithTx(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	UserID string
	Kind   domain.EventKind
	Status domain.EventStatus
	From   *time.Time // inclusive
	To     *time.Time // exclusive
	Limit  int
}

const eventColumns = `id, user_id, kind, bonus_type, amount, date, status, investment_id, source_id, reason, created_at`

// Append validates and stores a new event.
// Deposits and withdrawals without a status start as pending; other kinds must be status-less.
//
// Parameters:
//   - event: Event to append; ID and CreatedAt are populated on success
//
// Returns:
//   - int64: New event id
//   - error: ValidationError for bad input, or a wrapped database error
func (r *Repository) Append(ctx context.Context, event *domain.LedgerEvent) (int64, error) {
	if err := r.validate(ctx, event); err != nil {
		return 0, err
	}

	event.Amount = domain.Round(event.Amount)
	event.Date = utils.StartOfDay(event.Date)
	event.CreatedAt = time.Now().UTC()

	var investmentID interface{}
	if event.InvestmentID != nil {
		investmentID = *event.InvestmentID
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_events (
			user_id, kind, bonus_type, amount, date, status, investment_id, source_id, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.UserID,
		string(event.Kind),
		nullIfEmpty(string(event.BonusType)),
		domain.FormatAmount(event.Amount),
		event.Date.Unix(),
		string(event.Status),
		investmentID,
		nullIfEmpty(event.SourceID),
		nullIfEmpty(event.Reason),
		event.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append %s event for %s: %w", event.Kind, event.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	event.ID = id

	return id, nil
}

// AppendBatch appends every event or none of them.
// When the repository is bound to a transaction the caller owns commit and rollback.
func (r *Repository) AppendBatch(ctx context.Context, events []*domain.LedgerEvent) ([]int64, error) {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin batch transaction: %w", err)
		}
		ids, err := r.WithTx(tx).appendAll(ctx, events)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit batch: %w", err)
		}
		return ids, nil
	}

	return r.appendAll(ctx, events)
}

func (r *Repository) appendAll(ctx context.Context, events []*domain.LedgerEvent) ([]int64, error) {
	ids := make([]int64, 0, len(events))
	for i, event := range events {
		id, err := r.Append(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("batch event %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Repository) validate(ctx context.Context, event *domain.LedgerEvent) error {
	if !event.Kind.Valid() {
		return domain.Invalid("kind", fmt.Errorf("%w: %q", domain.ErrInvalidKind, event.Kind))
	}
	if event.Amount.IsNegative() {
		return domain.Invalid("amount", domain.ErrInvalidAmount)
	}

	if event.Kind.CarriesStatus() {
		switch event.Status {
		case domain.StatusNone:
			event.Status = domain.StatusPending
		case domain.StatusPending, domain.StatusCompleted, domain.StatusRejected:
		default:
			return domain.Invalid("status", domain.ErrInvalidStatus)
		}
	} else if event.Status != domain.StatusNone {
		return domain.Invalid("status", domain.ErrInvalidStatus)
	}

	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", event.UserID).Scan(&one)
	if err == sql.ErrNoRows {
		return domain.Invalid("user_id", fmt.Errorf("%w: %s", domain.ErrUnknownUser, event.UserID))
	}
	if err != nil {
		return fmt.Errorf("failed to resolve user %s: %w", event.UserID, err)
	}

	return nil
}

// Get retrieves an event by id.
// Returns nil if the event doesn't exist (not an error).
func (r *Repository) Get(ctx context.Context, id int64) (*domain.LedgerEvent, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM ledger_events WHERE id = ?", id)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

// SetStatus moves a pending deposit or withdrawal to completed or rejected.
// Completing an already completed event is a no-op; changed reports whether
// anything was written so callers never apply side effects twice.
func (r *Repository) SetStatus(ctx context.Context, id int64, status domain.EventStatus) (event *domain.LedgerEvent, changed bool, err error) {
	if status != domain.StatusCompleted && status != domain.StatusRejected {
		return nil, false, domain.Invalid("status", domain.ErrInvalidStatus)
	}

	event, err = r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if event == nil {
		return nil, false, fmt.Errorf("event %d: %w", id, domain.ErrNotFound)
	}
	if !event.Kind.CarriesStatus() {
		return nil, false, domain.Invalid("status", fmt.Errorf("%w: %s events are status-less", domain.ErrInvalidStatus, event.Kind))
	}

	switch {
	case event.Status == domain.StatusPending:
	case event.Status == domain.StatusCompleted && status == domain.StatusCompleted:
		return event, false, nil
	default:
		return nil, false, fmt.Errorf("event %d %s -> %s: %w", id, event.Status, status, domain.ErrInvalidStatusTransition)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE ledger_events SET status = ? WHERE id = ? AND status = ?",
		string(status), id, string(domain.StatusPending),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update status of event %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, false, fmt.Errorf("event %d changed concurrently: %w", id, domain.ErrInvalidStatusTransition)
	}

	r.log.Debug().Int64("event_id", id).Str("status", string(status)).Msg("Event status changed")

	event.Status = status
	return event, true, nil
}

// ListByUser returns a user's events in replay order (date, then id)
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.LedgerEvent, error) {
	return r.query(ctx,
		"SELECT "+eventColumns+" FROM ledger_events WHERE user_id = ? ORDER BY date ASC, id ASC",
		userID,
	)
}

// List returns events matching filter, newest first
func (r *Repository) List(ctx context.Context, filter Filter) ([]domain.LedgerEvent, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.From != nil {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From.Unix())
	}
	if filter.To != nil {
		conds = append(conds, "date < ?")
		args = append(args, filter.To.Unix())
	}

	query := "SELECT " + eventColumns + " FROM ledger_events"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.query(ctx, query, args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]domain.LedgerEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.LedgerEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger events: %w", err)
	}

	return events, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*domain.LedgerEvent, error) {
	var (
		e                         domain.LedgerEvent
		kind, amount, status      string
		bonusType, source, reason sql.NullString
		investmentID              sql.NullInt64
		date, createdAt           int64
	)

	err := s.Scan(&e.ID, &e.UserID, &kind, &bonusType, &amount, &date, &status, &investmentID, &source, &reason, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Amount, err = domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	e.Kind = domain.EventKind(kind)
	e.BonusType = domain.BonusType(bonusType.String)
	e.Status = domain.EventStatus(status)
	e.SourceID = source.String
	e.Reason = reason.String
	e.Date = time.Unix(date, 0).UTC()
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	if investmentID.Valid {
		id := investmentID.Int64
		e.InvestmentID = &id
	}

	return &e, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
