package di

import (
	"fmt"

	"github.com/aristath/tierledger/internal/config"
	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/scheduler"
	"github.com/rs/zerolog"
)

// maintenanceSchedule runs integrity and WAL checks at 03:00 daily
const maintenanceSchedule = "0 3 * * *"

// RegisterJobs creates the scheduler and registers every configured job.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Service == nil {
		return nil, fmt.Errorf("container services must be initialized before jobs")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	instances.Maintenance = scheduler.NewDatabaseMaintenanceJob(map[string]*database.DB{
		"ledger": container.LedgerDB,
		"config": container.ConfigDB,
	}, log)
	if err := sched.AddJob(maintenanceSchedule, instances.Maintenance); err != nil {
		return nil, err
	}

	if container.BackupService != nil {
		instances.Backup = scheduler.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
			return nil, err
		}
	}

	if cfg.ClockAutoAdvanceSchedule != "" {
		instances.AdvanceClock = scheduler.NewAdvanceClockJob(container.Service, 1, log)
		if err := sched.AddJob(cfg.ClockAutoAdvanceSchedule, instances.AdvanceClock); err != nil {
			return nil, err
		}
	}

	container.Scheduler = sched
	return instances, nil
}
