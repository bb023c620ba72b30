// Package rankcycle runs the monthly rank evaluation and pays leadership and asset-growth bonuses.
package rankcycle

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/referral"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// UserStore lists users and updates their rank
type UserStore interface {
	List(ctx context.Context) ([]domain.User, error)
	SetRank(ctx context.Context, id string, rank int) error
}

// RankSource provides the rank ladder
type RankSource interface {
	List(ctx context.Context) ([]domain.Rank, error)
}

// GrowthRate provides the asset-growth share
type GrowthRate interface {
	AssetGrowthRate() (decimal.Decimal, error)
}

// Watermarks tracks which (user, month) pairs have been processed
type Watermarks interface {
	IsProcessed(ctx context.Context, userID, month string) (bool, error)
	MarkProcessed(ctx context.Context, userID, month, runID string) error
}

// EventAppender appends ledger events
type EventAppender interface {
	Append(ctx context.Context, event *domain.LedgerEvent) (int64, error)
}

// BonusRecorder stores bonus audit rows
type BonusRecorder interface {
	Record(ctx context.Context, b *domain.Bonus) (int64, error)
}

// Stats are a user's downline figures for one month
type Stats struct {
	ActiveDownline     int
	NewlyQualified     int
	DownlineInvestment decimal.Decimal
}

// Promotion records one rank change made by a cycle
type Promotion struct {
	UserID string          `json:"user_id"`
	From   int             `json:"from"`
	To     int             `json:"to"`
	Bonus  decimal.Decimal `json:"bonus"`
}

// Report summarizes one cycle run
type Report struct {
	Month            string          `json:"month"`
	RunID            string          `json:"run_id"`
	Evaluated        int             `json:"evaluated"`
	Skipped          int             `json:"skipped"`
	Promotions       []Promotion     `json:"promotions"`
	LeadershipTotal  decimal.Decimal `json:"leadership_total"`
	AssetGrowthTotal decimal.Decimal `json:"asset_growth_total"`
}

// Engine evaluates ranks for a closed month.
// Downline statistics are computed concurrently over an immutable graph
// snapshot; ledger writes are applied serially afterwards.
type Engine struct {
	users      UserStore
	ranks      RankSource
	rates      GrowthRate
	watermarks Watermarks
	events     EventAppender
	bonuses    BonusRecorder
	log        zerolog.Logger
}

// NewEngine creates a rank cycle engine
func NewEngine(users UserStore, ranks RankSource, rates GrowthRate, watermarks Watermarks, events EventAppender, bonuses BonusRecorder, log zerolog.Logger) *Engine {
	return &Engine{
		users:      users,
		ranks:      ranks,
		rates:      rates,
		watermarks: watermarks,
		events:     events,
		bonuses:    bonuses,
		log:        log.With().Str("component", "rank_cycle").Logger(),
	}
}

// Run processes month ("YYYY-MM") for every user who had joined before it
// ended. today must be on or after the first day of the following month.
// Users already watermarked for the month are skipped, so a second run is a
// no-op. Bonuses are dated on the first day of the following month.
func (e *Engine) Run(ctx context.Context, month string, today time.Time) (*Report, error) {
	timer := utils.StartBatch("rank_cycle", e.log)

	start, end, err := utils.MonthBounds(month)
	if err != nil {
		return nil, domain.Invalid("month", err)
	}
	if utils.StartOfDay(today).Before(end) {
		return nil, domain.Invalid("month", fmt.Errorf("%w: %s", domain.ErrMonthNotClosed, month))
	}

	listed, err := e.users.List(ctx)
	if err != nil {
		return nil, err
	}
	all := joinedBefore(listed, end)
	ladder, err := e.ranks.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(ladder, func(i, j int) bool { return ladder[i].Level < ladder[j].Level })
	growthRate, err := e.rates.AssetGrowthRate()
	if err != nil {
		return nil, err
	}

	graph := referral.NewGraph(all)
	stats, err := ComputeStats(ctx, graph, all, start, end)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Month:            month,
		RunID:            uuid.New().String(),
		LeadershipTotal:  decimal.Zero,
		AssetGrowthTotal: decimal.Zero,
	}

	for i := range all {
		err := e.processUser(ctx, report, &all[i], stats[i], ladder, growthRate, end)
		if errors.Is(err, domain.ErrCycleAlreadyProcessed) {
			report.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rank cycle %s for %s: %w", month, all[i].ID, err)
		}
		report.Evaluated++
	}

	e.log.Info().
		Str("month", month).
		Str("run_id", report.RunID).
		Int("evaluated", report.Evaluated).
		Int("skipped", report.Skipped).
		Int("promotions", len(report.Promotions)).
		Str("asset_growth_total", report.AssetGrowthTotal.String()).
		Msg("Rank cycle completed")
	timer.Done(len(all))

	return report, nil
}

// joinedBefore keeps the users whose join date precedes end
func joinedBefore(users []domain.User, end time.Time) []domain.User {
	out := make([]domain.User, 0, len(users))
	for i := range users {
		if users[i].JoinDate.Before(end) {
			out = append(out, users[i])
		}
	}
	return out
}

// ComputeStats returns Stats for each user, index-aligned with users.
// Traversals for different users run concurrently; the graph is read-only.
func ComputeStats(ctx context.Context, graph *referral.Graph, users []domain.User, start, end time.Time) ([]Stats, error) {
	stats := make([]Stats, len(users))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range users {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats[i] = statsFor(graph, users[i].ID, start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func statsFor(graph *referral.Graph, userID string, start, end time.Time) Stats {
	s := Stats{DownlineInvestment: decimal.Zero}
	for _, id := range graph.Downline(userID) {
		member := graph.User(id)
		if member == nil {
			continue
		}
		if member.Active() {
			s.ActiveDownline++
		}
		if q := member.QualifiedAt; q != nil && !q.Before(start) && q.Before(end) {
			s.NewlyQualified++
		}
		s.DownlineInvestment = s.DownlineInvestment.Add(member.TotalInvestment)
	}
	return s
}

// TargetRank returns the highest level whose thresholds the user meets
func TargetRank(user *domain.User, stats Stats, ladder []domain.Rank) *domain.Rank {
	var best *domain.Rank
	for i := range ladder {
		rank := &ladder[i]
		if stats.ActiveDownline < rank.MinAccounts || stats.NewlyQualified < rank.NewlyQualified {
			continue
		}
		if rank.MinTotalInvestment != nil && user.TotalInvestment.LessThan(*rank.MinTotalInvestment) {
			continue
		}
		if best == nil || rank.Level > best.Level {
			best = rank
		}
	}
	return best
}

func (e *Engine) processUser(ctx context.Context, report *Report, user *domain.User, stats Stats, ladder []domain.Rank, growthRate decimal.Decimal, payDate time.Time) error {
	done, err := e.watermarks.IsProcessed(ctx, user.ID, report.Month)
	if err != nil {
		return err
	}
	if done {
		e.log.Debug().Str("user_id", user.ID).Str("month", report.Month).Msg("Cycle already processed")
		return domain.ErrCycleAlreadyProcessed
	}

	if target := TargetRank(user, stats, ladder); target != nil && target.Level > user.Rank {
		if err := e.users.SetRank(ctx, user.ID, target.Level); err != nil {
			return err
		}
		promotion := Promotion{UserID: user.ID, From: user.Rank, To: target.Level, Bonus: domain.Round(target.FixedBonus)}
		if promotion.Bonus.IsPositive() {
			details := domain.BonusDetails{Month: report.Month, FromRank: user.Rank, ToRank: target.Level}
			if err := e.pay(ctx, user.ID, domain.BonusLeadership, promotion.Bonus, payDate, report, details); err != nil {
				return err
			}
			report.LeadershipTotal = report.LeadershipTotal.Add(promotion.Bonus)
		}
		e.log.Info().
			Str("user_id", user.ID).
			Int("from", user.Rank).
			Int("to", target.Level).
			Msg("User promoted")
		report.Promotions = append(report.Promotions, promotion)
	}

	growth := domain.Round(growthRate.Mul(stats.DownlineInvestment))
	if growth.IsPositive() {
		details := domain.BonusDetails{
			Month:      report.Month,
			Rate:       growthRate.String(),
			BaseAmount: stats.DownlineInvestment.String(),
		}
		if err := e.pay(ctx, user.ID, domain.BonusAssetGrowth, growth, payDate, report, details); err != nil {
			return err
		}
		report.AssetGrowthTotal = report.AssetGrowthTotal.Add(growth)
	}

	return e.watermarks.MarkProcessed(ctx, user.ID, report.Month, report.RunID)
}

func (e *Engine) pay(ctx context.Context, userID string, bonusType domain.BonusType, amount decimal.Decimal, date time.Time, report *Report, details domain.BonusDetails) error {
	sourceID := "cycle:" + report.Month
	event := &domain.LedgerEvent{
		UserID:    userID,
		Kind:      domain.KindBonus,
		BonusType: bonusType,
		Amount:    amount,
		Date:      date,
		SourceID:  sourceID,
	}
	eventID, err := e.events.Append(ctx, event)
	if err != nil {
		return err
	}

	_, err = e.bonuses.Record(ctx, &domain.Bonus{
		Type:     bonusType,
		UserID:   userID,
		SourceID: sourceID,
		Amount:   event.Amount,
		Date:     event.Date,
		EventID:  eventID,
		BatchID:  report.RunID,
		Details:  details,
	})
	return err
}
