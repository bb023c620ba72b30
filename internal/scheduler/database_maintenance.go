package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/aristath/tierledger/internal/database"
	"github.com/rs/zerolog"
)

// walFrameThreshold is the WAL size (in frames) above which the WAL is truncated
const walFrameThreshold = 1000

// DatabaseMaintenanceJob verifies integrity of the ledger and config databases
// and keeps their WAL files from growing unbounded
type DatabaseMaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewDatabaseMaintenanceJob creates a new DatabaseMaintenanceJob. Nil databases are skipped.
func NewDatabaseMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance pass
func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
	defer cancel()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	checked := 0
	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		// Corruption cannot be auto-recovered
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		j.checkpoint(ctx, name, db)
		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database maintenance completed")
	return nil
}

func (j *DatabaseMaintenanceJob) checkpoint(ctx context.Context, name string, db *database.DB) {
	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Str("database", name).Msg("Failed to check WAL checkpoint")
		return
	}

	if frames <= walFrameThreshold {
		j.log.Debug().Str("database", name).Int("wal_frames", frames).Msg("WAL checkpoint status OK")
		return
	}

	j.log.Warn().
		Str("database", name).
		Int("wal_frames", frames).
		Int("checkpointed", checkpointed).
		Msg("WAL file is large, truncating")

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Error().Err(err).Str("database", name).Msg("WAL truncate failed")
	}
}
