// Package clock holds the simulated ledger date and drives date-based effects.
// The date only moves through Advance; wall-clock time never changes it.
package clock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/accrual"
	"github.com/aristath/tierledger/internal/modules/rankcycle"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/rs/zerolog"
)

// Accruer appends profit-share for the span [from, to) using q
type Accruer interface {
	Accrue(ctx context.Context, q database.Querier, from, to time.Time) (*accrual.Report, error)
}

// CycleRunner runs the rank cycle for a closed month using q
type CycleRunner interface {
	RunCycle(ctx context.Context, q database.Querier, month string, today time.Time) (*rankcycle.Report, error)
}

// Report describes everything one Advance call did
type Report struct {
	From    time.Time           `json:"from"`
	To      time.Time           `json:"to"`
	Days    int                 `json:"days"`
	Accrual *accrual.Report     `json:"accrual,omitempty"`
	Cycles  []*rankcycle.Report `json:"cycles,omitempty"`
}

// Clock is the explicit command object behind the simulated date
type Clock struct {
	db      *database.DB // ledger.db - clock_state table
	start   time.Time
	accruer Accruer
	cycles  CycleRunner
	log     zerolog.Logger
}

// New creates a clock. start seeds the date the first time the ledger is used.
func New(db *database.DB, start time.Time, accruer Accruer, cycles CycleRunner, log zerolog.Logger) *Clock {
	return &Clock{
		db:      db,
		start:   utils.StartOfDay(start),
		accruer: accruer,
		cycles:  cycles,
		log:     log.With().Str("component", "clock").Logger(),
	}
}

// Start returns the configured first day of the ledger. No month before the
// one containing it can ever close through Advance.
func (c *Clock) Start() time.Time {
	return c.start
}

// Today returns the current simulated date
func (c *Clock) Today(ctx context.Context) (time.Time, error) {
	return c.load(ctx, c.db.Conn())
}

// Advance moves the date forward by days.
//
// Accrual for the whole span runs first, then one rank cycle per month
// boundary crossed, oldest first, then the new date is stored. Everything
// happens in a single transaction: if any step fails nothing is written and
// the date stays where it was. A negative span is rejected; zero is a no-op.
func (c *Clock) Advance(ctx context.Context, days int) (*Report, error) {
	if days < 0 {
		return nil, domain.Invalid("days", domain.ErrInvalidDays)
	}
	defer utils.StartBatch("clock_advance", c.log).Done(days)

	var report *Report
	err := c.db.InTx(func(tx *sql.Tx) error {
		from, err := c.load(ctx, tx)
		if err != nil {
			return err
		}
		to := from.AddDate(0, 0, days)
		report = &Report{From: from, To: to, Days: days}
		if days == 0 {
			return nil
		}

		if report.Accrual, err = c.accruer.Accrue(ctx, tx, from, to); err != nil {
			return fmt.Errorf("accrual failed: %w", err)
		}

		for _, month := range utils.MonthsEnded(from, to) {
			cycle, err := c.cycles.RunCycle(ctx, tx, month, to)
			if err != nil {
				return fmt.Errorf("rank cycle %s failed: %w", month, err)
			}
			report.Cycles = append(report.Cycles, cycle)
		}

		return c.save(ctx, tx, to)
	})
	if err != nil {
		return nil, err
	}

	if days > 0 {
		c.log.Info().
			Str("from", utils.FormatDate(report.From)).
			Str("to", utils.FormatDate(report.To)).
			Int("cycles", len(report.Cycles)).
			Msg("Clock advanced")
	}
	return report, nil
}

func (c *Clock) load(ctx context.Context, q database.Querier) (time.Time, error) {
	var today int64
	err := q.QueryRowContext(ctx, "SELECT today FROM clock_state WHERE id = 1").Scan(&today)
	if err == sql.ErrNoRows {
		return c.start, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read clock: %w", err)
	}
	return utils.UnixToDate(today), nil
}

func (c *Clock) save(ctx context.Context, q database.Querier, today time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO clock_state (id, today, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET today = excluded.today, updated_at = excluded.updated_at
	`, today.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store clock: %w", err)
	}
	return nil
}
