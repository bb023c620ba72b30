// Package core is the single-writer facade over the ledger modules.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/events"
	"github.com/aristath/tierledger/internal/modules/accrual"
	"github.com/aristath/tierledger/internal/modules/assets"
	"github.com/aristath/tierledger/internal/modules/clock"
	"github.com/aristath/tierledger/internal/modules/commission"
	"github.com/aristath/tierledger/internal/modules/ledger"
	"github.com/aristath/tierledger/internal/modules/rankcycle"
	"github.com/aristath/tierledger/internal/modules/referral"
	"github.com/aristath/tierledger/internal/modules/settings"
	"github.com/aristath/tierledger/internal/modules/users"
	"github.com/rs/zerolog"
)

// Service coordinates every ledger mutation.
//
// Writers (appends, investments, status changes, clock advances, admin
// operations) hold the write lock and run in one ledger.db transaction with
// repositories bound to that transaction. Projections and graph reads hold the
// read lock, so they never observe half of a commission batch.
//
// Responsibilities:
//   - Validate requests before anything is appended
//   - Keep the cached user aggregates in step with the ledger
//   - Drive commission, accrual and rank cycles
//   - Emit events after a successful commit
type Service struct {
	mu sync.RWMutex

	ledgerDB *database.DB
	configDB *database.DB

	users       *users.Repository
	assets      *assets.Repository
	events      *ledger.Repository
	bonuses     *ledger.BonusRepository
	investments *ledger.InvestmentRepository
	watermarks  *rankcycle.Repository
	settings    *settings.Repository
	rates       *settings.RateRepository
	ranks       *settings.RankRepository

	clock   *clock.Clock
	emitter *events.Manager
	log     zerolog.Logger
}

// Config holds the collaborators of a Service
type Config struct {
	LedgerDB   *database.DB
	ConfigDB   *database.DB
	ClockStart time.Time
	Events     *events.Manager // optional
}

// NewService wires repositories and engines over the two databases
func NewService(cfg Config, log zerolog.Logger) *Service {
	ledgerConn := cfg.LedgerDB.Conn()
	settingsRepo := settings.NewRepository(cfg.ConfigDB.Conn(), log)

	s := &Service{
		ledgerDB:    cfg.LedgerDB,
		configDB:    cfg.ConfigDB,
		users:       users.NewRepository(ledgerConn, log),
		assets:      assets.NewRepository(ledgerConn, log),
		events:      ledger.NewRepository(ledgerConn, log),
		bonuses:     ledger.NewBonusRepository(ledgerConn, log),
		investments: ledger.NewInvestmentRepository(ledgerConn, log),
		watermarks:  rankcycle.NewRepository(ledgerConn, log),
		settings:    settingsRepo,
		rates:       settings.NewRateRepository(settingsRepo),
		ranks:       settings.NewRankRepository(cfg.ConfigDB.Conn(), log),
		emitter:     cfg.Events,
		log:         log.With().Str("service", "core").Logger(),
	}
	s.clock = clock.New(cfg.LedgerDB, cfg.ClockStart, effects{s}, effects{s}, log)
	return s
}

// Settings returns the key/value settings repository (config.db)
func (s *Service) Settings() *settings.Repository {
	return s.settings
}

// Rates returns the commission rate tables (config.db)
func (s *Service) Rates() *settings.RateRepository {
	return s.rates
}

// Ranks returns the rank ladder repository (config.db)
func (s *Service) Ranks() *settings.RankRepository {
	return s.ranks
}

// HealthCheck pings and integrity-checks both databases
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.ledgerDB.HealthCheck(ctx); err != nil {
		return err
	}
	return s.configDB.HealthCheck(ctx)
}

// txRepos are repositories bound to one ledger.db transaction
type txRepos struct {
	users       *users.Repository
	assets      *assets.Repository
	events      *ledger.Repository
	bonuses     *ledger.BonusRepository
	investments *ledger.InvestmentRepository
	watermarks  *rankcycle.Repository
}

func (s *Service) bind(q database.Querier) *txRepos {
	return &txRepos{
		users:       s.users.WithTx(q),
		assets:      s.assets.WithTx(q),
		events:      s.events.WithTx(q),
		bonuses:     s.bonuses.WithTx(q),
		investments: s.investments.WithTx(q),
		watermarks:  s.watermarks.WithTx(q),
	}
}

// inTx runs fn in a ledger.db transaction with repositories bound to it.
// The caller must hold the write lock.
func (s *Service) inTx(fn func(r *txRepos) error) error {
	return s.ledgerDB.InTx(func(tx *sql.Tx) error {
		return fn(s.bind(tx))
	})
}

func (r *txRepos) commission(s *Service) *commission.Engine {
	return commission.NewEngine(r.events, r.bonuses, r.assets, s.rates, s.log)
}

func (r *txRepos) accrual(s *Service) *accrual.Scheduler {
	return accrual.NewScheduler(r.investments, r.events, r.assets, s.log)
}

func (r *txRepos) rankCycle(s *Service) *rankcycle.Engine {
	return rankcycle.NewEngine(r.users, s.ranks, s.rates, r.watermarks, r.events, r.bonuses, s.log)
}

// graph builds a referral snapshot from the users visible to q's repositories
func (r *txRepos) graph(ctx context.Context) (*referral.Graph, error) {
	all, err := r.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load referral graph: %w", err)
	}
	return referral.NewGraph(all), nil
}

func (s *Service) emit(module string, data events.EventData) {
	if s.emitter == nil {
		return
	}
	s.emitter.EmitTyped(module, data)
}

// effects runs the clock's date-driven work inside the clock's transaction.
// It never takes the service lock: Advance already holds it.
type effects struct {
	s *Service
}

func (e effects) Accrue(ctx context.Context, q database.Querier, from, to time.Time) (*accrual.Report, error) {
	return e.s.bind(q).accrual(e.s).Run(ctx, from, to)
}

func (e effects) RunCycle(ctx context.Context, q database.Querier, month string, today time.Time) (*rankcycle.Report, error) {
	return e.s.bind(q).rankCycle(e.s).Run(ctx, month, today)
}
