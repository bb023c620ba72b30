package assets

import (
	"context"
	"testing"

	"github.com/aristath/tierledger/internal/domain"
	testingpkg "github.com/aristath/tierledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_Lookups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Asset{
		ID:            "solar",
		Name:          "Solar Farm",
		Kind:          domain.AssetProject,
		APY:           decimal.NewFromInt(10),
		MinInvestment: decimal.NewFromInt(100),
	}))

	apy, err := repo.GetAPY(ctx, "solar")
	require.NoError(t, err)
	assert.True(t, apy.Equal(decimal.NewFromInt(10)))

	minimum, err := repo.GetMinInvestment(ctx, "solar")
	require.NoError(t, err)
	assert.True(t, minimum.Equal(decimal.NewFromInt(100)))

	rates, err := repo.GetTeamBuilderRates(ctx, "solar")
	require.NoError(t, err)
	assert.Nil(t, rates)
}

func TestRepository_UnknownAsset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetAPY(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)

	a, err := repo.Get(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestRepository_TeamBuilderOverrideRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	override := []decimal.Decimal{
		decimal.RequireFromString("0.07"),
		decimal.RequireFromString("0.02"),
	}
	require.NoError(t, repo.Create(ctx, &domain.Asset{
		ID:               "pool-1",
		Name:             "Growth Pool",
		Kind:             domain.AssetPool,
		APY:              decimal.NewFromInt(12),
		MinInvestment:    decimal.NewFromInt(50),
		TeamBuilderRates: override,
	}))

	got, err := repo.Get(ctx, "pool-1")
	require.NoError(t, err)
	require.Len(t, got.TeamBuilderRates, 2)
	assert.Equal(t, "0.07", got.TeamBuilderRates[0].String())
	assert.Equal(t, "0.02", got.TeamBuilderRates[1].String())
	assert.Equal(t, domain.AssetPool, got.Kind)

	err = repo.Create(ctx, &domain.Asset{ID: "pool-1", Name: "dup"})
	assert.ErrorIs(t, err, domain.ErrDuplicateAsset)
}
