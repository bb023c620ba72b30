package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/modules/clock"
	"github.com/aristath/tierledger/internal/reliability"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/rs/zerolog"
)

const defaultJobTimeout = 10 * time.Minute

// ClockAdvancer moves the simulated clock forward
type ClockAdvancer interface {
	Advance(ctx context.Context, days int) (*clock.Report, error)
}

// BackupRunner creates, uploads and rotates ledger backups
type BackupRunner interface {
	Run(ctx context.Context, retentionDays int) (*reliability.BackupInfo, error)
}

// AdvanceClockJob advances the simulated clock by a fixed number of days per tick
type AdvanceClockJob struct {
	clock   ClockAdvancer
	days    int
	timeout time.Duration
	log     zerolog.Logger
}

// NewAdvanceClockJob creates a job advancing the clock by days per run
func NewAdvanceClockJob(advancer ClockAdvancer, days int, log zerolog.Logger) *AdvanceClockJob {
	return &AdvanceClockJob{
		clock:   advancer,
		days:    days,
		timeout: defaultJobTimeout,
		log:     log.With().Str("job", "advance_clock").Logger(),
	}
}

// Name returns the job name
func (j *AdvanceClockJob) Name() string {
	return "advance_clock"
}

// Run advances the clock once
func (j *AdvanceClockJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.clock.Advance(ctx, j.days)
	if err != nil {
		return fmt.Errorf("failed to advance clock: %w", err)
	}

	profitEvents := 0
	if report.Accrual != nil {
		profitEvents = report.Accrual.Accrued
	}

	j.log.Info().
		Str("from", utils.FormatDate(report.From)).
		Str("to", utils.FormatDate(report.To)).
		Int("profit_events", profitEvents).
		Int("cycles", len(report.Cycles)).
		Msg("Clock advanced")

	return nil
}

// BackupJob ships a ledger backup and rotates old archives
type BackupJob struct {
	backup        BackupRunner
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates a scheduled backup job
func NewBackupJob(backup BackupRunner, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:        backup,
		retentionDays: retentionDays,
		timeout:       defaultJobTimeout,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes one backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	info, err := j.backup.Run(ctx, j.retentionDays)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	j.log.Info().Str("key", info.Key).Int64("size_bytes", info.SizeBytes).Msg("Backup stored")
	return nil
}
