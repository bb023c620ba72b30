package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/modules/accrual"
	"github.com/aristath/tierledger/internal/modules/clock"
	"github.com/aristath/tierledger/internal/reliability"
	testhelpers "github.com/aristath/tierledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAdvancer struct {
	mock.Mock
}

func (m *mockAdvancer) Advance(ctx context.Context, days int) (*clock.Report, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clock.Report), args.Error(1)
}

type mockBackup struct {
	mock.Mock
}

func (m *mockBackup) Run(ctx context.Context, retentionDays int) (*reliability.BackupInfo, error) {
	args := m.Called(ctx, retentionDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reliability.BackupInfo), args.Error(1)
}

type countingJob struct {
	runs chan struct{}
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs <- struct{}{}
	return nil
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("@daily"))
	assert.NoError(t, ValidateSchedule("0 2 * * *"))
	assert.NoError(t, ValidateSchedule("*/10 * * * * *"))
	assert.NoError(t, ValidateSchedule("@every 30s"))
	assert.Error(t, ValidateSchedule("every day"))
}

func TestAddJob_RejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &countingJob{runs: make(chan struct{}, 1)})
	assert.Error(t, err)
}

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{runs: make(chan struct{}, 4)}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-job.runs:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestAdvanceClockJob_AdvancesConfiguredDays(t *testing.T) {
	advancer := new(mockAdvancer)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	advancer.On("Advance", mock.Anything, 1).Return(&clock.Report{
		From:    from,
		To:      from.AddDate(0, 0, 1),
		Days:    1,
		Accrual: &accrual.Report{Accrued: 2},
	}, nil)

	job := NewAdvanceClockJob(advancer, 1, zerolog.Nop())
	assert.Equal(t, "advance_clock", job.Name())
	require.NoError(t, job.Run())
	advancer.AssertExpectations(t)
}

func TestAdvanceClockJob_PropagatesError(t *testing.T) {
	advancer := new(mockAdvancer)
	advancer.On("Advance", mock.Anything, 1).Return(nil, errors.New("locked"))

	err := NewAdvanceClockJob(advancer, 1, zerolog.Nop()).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

func TestBackupJob_PassesRetention(t *testing.T) {
	backup := new(mockBackup)
	backup.On("Run", mock.Anything, 30).Return(&reliability.BackupInfo{Key: "k", SizeBytes: 10}, nil)

	job := NewBackupJob(backup, 30, zerolog.Nop())
	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	backup.AssertExpectations(t)
}

func TestBackupJob_PropagatesError(t *testing.T) {
	backup := new(mockBackup)
	backup.On("Run", mock.Anything, 7).Return(nil, errors.New("no bucket"))

	assert.Error(t, NewBackupJob(backup, 7, zerolog.Nop()).Run())
}

func TestDatabaseMaintenanceJob_Run(t *testing.T) {
	ledgerDB, configDB := testhelpers.NewLedgerTestDBs(t)

	job := NewDatabaseMaintenanceJob(map[string]*database.DB{
		"ledger":  ledgerDB,
		"config":  configDB,
		"missing": nil,
	}, zerolog.Nop())

	assert.Equal(t, "database_maintenance", job.Name())
	assert.NoError(t, job.Run())
}
