package accrual

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/tierledger/internal/domain"
	testingpkg "github.com/aristath/tierledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_InMemory_SkipsMissingAssetAndKeepsGoing(t *testing.T) {
	investments := testingpkg.NewMockInvestmentStore(
		domain.Investment{ID: 1, UserID: "alice", AssetID: "gone", Amount: testingpkg.Dec(t, "5000"), StartDate: date(1, 1)},
		domain.Investment{ID: 2, UserID: "alice", AssetID: "pool", Amount: testingpkg.Dec(t, "10000"), StartDate: date(1, 1)},
	)
	ledger := testingpkg.NewMockLedger()
	catalog := testingpkg.NewMockAssetCatalog(domain.Asset{ID: "pool", APY: testingpkg.Dec(t, "10")})

	report, err := NewScheduler(investments, ledger, catalog, zerolog.Nop()).Run(context.Background(), date(1, 1), date(1, 8))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Accrued)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, ledger.Events(), 1)
	assert.Equal(t, domain.KindProfitShare, ledger.Events()[0].Kind)
	assert.True(t, testingpkg.Dec(t, "19.17808219").Equal(investments.Get(2).TotalProfitEarned))
	assert.True(t, investments.Get(1).TotalProfitEarned.IsZero())
}

func TestRun_InMemory_LookupFailureAborts(t *testing.T) {
	investments := testingpkg.NewMockInvestmentStore(
		domain.Investment{ID: 1, UserID: "alice", AssetID: "pool", Amount: testingpkg.Dec(t, "100"), StartDate: date(1, 1)},
	)
	catalog := testingpkg.NewMockAssetCatalog()
	catalog.SetError(errors.New("disk I/O error"))

	_, err := NewScheduler(investments, testingpkg.NewMockLedger(), catalog, zerolog.Nop()).Run(context.Background(), date(1, 1), date(1, 2))
	assert.Error(t, err)
}

func TestRun_InMemory_AppendFailureAborts(t *testing.T) {
	investments := testingpkg.NewMockInvestmentStore(
		domain.Investment{ID: 1, UserID: "alice", AssetID: "pool", Amount: testingpkg.Dec(t, "100"), StartDate: date(1, 1)},
	)
	ledger := testingpkg.NewMockLedger()
	ledger.SetError(errors.New("database is locked"))
	catalog := testingpkg.NewMockAssetCatalog(domain.Asset{ID: "pool", APY: testingpkg.Dec(t, "12")})

	_, err := NewScheduler(investments, ledger, catalog, zerolog.Nop()).Run(context.Background(), date(1, 1), date(1, 2))
	assert.Error(t, err)
	assert.True(t, investments.Get(1).TotalProfitEarned.IsZero())
}
