/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and scheduler.
 */
package di

import (
	"github.com/aristath/tierledger/internal/core"
	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/events"
	"github.com/aristath/tierledger/internal/reliability"
	"github.com/aristath/tierledger/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: ledger.db (users, assets, events, investments, bonuses, cycles, clock)
 *   and config.db (settings, rank ladder)
 * - Events: in-process bus feeding the SSE stream
 * - Service: the single-writer ledger facade
 * - Backup: optional S3 backup service (nil when not configured)
 * - Scheduler: cron runner for maintenance, backup and clock autopilot jobs
 */
type Container struct {
	LedgerDB *database.DB
	ConfigDB *database.DB

	EventBus     *events.Bus
	EventManager *events.Manager

	Service       *core.Service
	BackupService *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the scheduled jobs for manual triggering via API.
// Optional jobs are nil when disabled by configuration.
type JobInstances struct {
	Maintenance  *scheduler.DatabaseMaintenanceJob
	Backup       *scheduler.BackupJob
	AdvanceClock *scheduler.AdvanceClockJob
}

// All returns every configured job
func (j *JobInstances) All() []scheduler.Job {
	jobs := []scheduler.Job{j.Maintenance}
	if j.Backup != nil {
		jobs = append(jobs, j.Backup)
	}
	if j.AdvanceClock != nil {
		jobs = append(jobs, j.AdvanceClock)
	}
	return jobs
}

// Close closes both databases
func (c *Container) Close() {
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
	if c.ConfigDB != nil {
		c.ConfigDB.Close()
	}
}
