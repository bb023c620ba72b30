package users

import (
	"context"
	"testing"
	"time"

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

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	root := &domain.User{ID: "alice", JoinDate: testingpkg.FixtureDate}
	require.NoError(t, repo.Create(ctx, root))

	upline := "alice"
	child := &domain.User{ID: "bob", UplineID: &upline, JoinDate: testingpkg.FixtureDate}
	require.NoError(t, repo.Create(ctx, child))

	got, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.MinRank, got.Rank)
	require.NotNil(t, got.UplineID)
	assert.Equal(t, "alice", *got.UplineID)
	assert.Nil(t, got.ReferrerID)
	assert.Nil(t, got.QualifiedAt)
	assert.True(t, got.TotalInvestment.IsZero())
	assert.Equal(t, testingpkg.FixtureDate, got.JoinDate)

	missing, err := repo.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.User{ID: "alice", JoinDate: testingpkg.FixtureDate}))
	err := repo.Create(ctx, &domain.User{ID: "alice", JoinDate: testingpkg.FixtureDate})
	assert.ErrorIs(t, err, domain.ErrDuplicateUser)
}

func TestRepository_AddTotalInvestment(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "alice", JoinDate: testingpkg.FixtureDate}))

	require.NoError(t, repo.AddTotalInvestment(ctx, "alice", decimal.RequireFromString("100.5")))
	require.NoError(t, repo.AddTotalInvestment(ctx, "alice", decimal.RequireFromString("0.00000001")))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "100.50000001", got.TotalInvestment.String())

	err = repo.AddTotalInvestment(ctx, "ghost", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrUnknownUser)
}

func TestRepository_MarkQualifiedKeepsFirstDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "alice", JoinDate: testingpkg.FixtureDate}))

	first := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkQualified(ctx, "alice", first))
	require.NoError(t, repo.MarkQualified(ctx, "alice", first.AddDate(0, 1, 0)))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.QualifiedAt)
	assert.Equal(t, first, *got.QualifiedAt)
}

func TestRepository_SetRankAndFrozen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "alice", JoinDate: testingpkg.FixtureDate}))

	require.NoError(t, repo.SetRank(ctx, "alice", 4))
	require.NoError(t, repo.SetFrozen(ctx, "alice", true))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Rank)
	assert.True(t, got.Frozen)

	assert.ErrorIs(t, repo.SetRank(ctx, "ghost", 2), domain.ErrUnknownUser)
}

func TestRepository_List(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, id := range []string{"c", "a", "b"} {
		u := &domain.User{ID: id, JoinDate: testingpkg.FixtureDate.AddDate(0, 0, i)}
		require.NoError(t, repo.Create(ctx, u))
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{all[0].ID, all[1].ID, all[2].ID})
}
