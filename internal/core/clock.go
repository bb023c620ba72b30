package core

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/events"
	"github.com/aristath/tierledger/internal/modules/clock"
	"github.com/aristath/tierledger/internal/modules/rankcycle"
	"github.com/aristath/tierledger/internal/utils"
)

// Today returns the simulated date
func (s *Service) Today(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Today(ctx)
}

// Advance moves the simulated date forward, running accrual and any rank
// cycles for months that closed. Nothing else can write while it runs.
func (s *Service) Advance(ctx context.Context, days int) (*clock.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.clock.Advance(ctx, days)
	if err != nil {
		return nil, err
	}
	if report.Days == 0 {
		return report, nil
	}

	data := &events.ClockAdvancedData{
		From: utils.FormatDate(report.From),
		To:   utils.FormatDate(report.To),
		Days: report.Days,
	}
	if report.Accrual != nil {
		data.ProfitEvents = report.Accrual.Accrued
	}
	for _, cycle := range report.Cycles {
		data.Months = append(data.Months, cycle.Month)
		s.emitCycle(cycle)
	}
	s.emit("clock", data)
	return report, nil
}

// RunRankCycle runs the cycle for a closed month outside Advance.
// Users already processed for the month are skipped, so re-running is safe.
// Months before the one the clock started in are rejected.
func (s *Service) RunRankCycle(ctx context.Context, month string) (*rankcycle.Report, error) {
	first, err := utils.ParseMonth(month)
	if err != nil {
		return nil, domain.Invalid("month", err)
	}
	if first.Before(utils.MonthStart(s.clock.Start())) {
		return nil, domain.Invalid("month", fmt.Errorf("%w: %s", domain.ErrMonthBeforeStart, month))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today, err := s.clock.Today(ctx)
	if err != nil {
		return nil, err
	}

	var report *rankcycle.Report
	err = s.inTx(func(r *txRepos) error {
		var runErr error
		report, runErr = r.rankCycle(s).Run(ctx, month, today)
		return runErr
	})
	if err != nil {
		return nil, err
	}

	s.emitCycle(report)
	return report, nil
}

func (s *Service) emitCycle(report *rankcycle.Report) {
	s.emit("rank_cycle", &events.RankCycleCompletedData{
		Month:      report.Month,
		RunID:      report.RunID,
		Evaluated:  report.Evaluated,
		Skipped:    report.Skipped,
		Promotions: len(report.Promotions),
	})
}
