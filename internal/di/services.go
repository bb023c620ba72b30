package di

import (
	"context"
	"fmt"

	"github.com/aristath/tierledger/internal/config"
	"github.com/aristath/tierledger/internal/core"
	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/events"
	"github.com/aristath/tierledger/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event bus, the ledger service and, when
// configured, the backup service. Default ranks are seeded on first start.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.Service = core.NewService(core.Config{
		LedgerDB:   container.LedgerDB,
		ConfigDB:   container.ConfigDB,
		ClockStart: cfg.ClockStartDate,
		Events:     container.EventManager,
	}, log)

	if err := container.Service.Ranks().SeedDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed rank ladder: %w", err)
	}

	if !cfg.Backup.Enabled() {
		log.Info().Msg("Backups disabled (no bucket credentials configured)")
		return nil
	}

	store, err := reliability.NewS3Client(ctx, cfg.Backup, log)
	if err != nil {
		return fmt.Errorf("failed to create backup client: %w", err)
	}

	container.BackupService = reliability.NewBackupService(store, map[string]*database.DB{
		"ledger": container.LedgerDB,
		"config": container.ConfigDB,
	}, cfg.DataDir, container.EventManager, log)

	log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backup service initialized")
	return nil
}
