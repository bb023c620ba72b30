package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/tierledger/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:        t.TempDir(),
		DBDriver:       "sqlite",
		Port:           8080,
		ClockStartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Backup:         &config.BackupConfig{},
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.LedgerDB)
	assert.NotNil(t, container.ConfigDB)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "ledger.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "config.db"))
}

func TestWire_WithoutOptionalJobs(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Service)
	assert.NotNil(t, container.EventBus)
	assert.NotNil(t, container.Scheduler)
	assert.Nil(t, container.BackupService)

	require.NotNil(t, jobs.Maintenance)
	assert.Nil(t, jobs.Backup)
	assert.Nil(t, jobs.AdvanceClock)
	assert.Len(t, jobs.All(), 1)

	ranks, err := container.Service.RankLadder(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, ranks, "default rank ladder should be seeded")
}

func TestWire_ClockAutopilot(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClockAutoAdvanceSchedule = "@every 1h"

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, jobs.AdvanceClock)
	require.NoError(t, jobs.AdvanceClock.Run())

	today, err := container.Service.Today(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", today.Format("2006-01-02"))
}

func TestWire_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClockAutoAdvanceSchedule = "sometimes"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
