package rankcycle

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/ledger"
	"github.com/aristath/tierledger/internal/modules/referral"
	"github.com/aristath/tierledger/internal/modules/settings"
	"github.com/aristath/tierledger/internal/modules/users"
	testingpkg "github.com/aristath/tierledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	users   *users.Repository
	events  *ledger.Repository
	bonuses *ledger.BonusRepository
	ranks   *settings.RankRepository
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledgerDB, configDB := testingpkg.NewLedgerTestDBs(t)
	log := zerolog.Nop()

	f := &fixture{
		users:   users.NewRepository(ledgerDB.Conn(), log),
		events:  ledger.NewRepository(ledgerDB.Conn(), log),
		bonuses: ledger.NewBonusRepository(ledgerDB.Conn(), log),
		ranks:   settings.NewRankRepository(configDB.Conn(), log),
	}
	rates := settings.NewRateRepository(settings.NewRepository(configDB.Conn(), log))
	f.engine = NewEngine(f.users, f.ranks, rates, NewRepository(ledgerDB.Conn(), log), f.events, f.bonuses, log)

	ctx := context.Background()
	require.NoError(t, f.ranks.SeedDefaults(ctx))
	require.NoError(t, f.ranks.Upsert(ctx, domain.Rank{Level: 2, MinAccounts: 3, NewlyQualified: 1, FixedBonus: decimal.NewFromInt(100)}))
	require.NoError(t, f.ranks.Upsert(ctx, domain.Rank{Level: 3, MinAccounts: 3, NewlyQualified: 3, FixedBonus: decimal.NewFromInt(250)}))

	// lead -> a, b, c
	for _, id := range []string{"lead", "a", "b", "c"} {
		upline := "lead"
		if id == "lead" {
			upline = ""
		}
		testingpkg.InsertUser(t, ledgerDB.Conn(), id, upline)
	}
	return f
}

func (f *fixture) invest(t *testing.T, id string, amount int64, qualified time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.users.AddTotalInvestment(ctx, id, decimal.NewFromInt(amount)))
	require.NoError(t, f.users.MarkQualified(ctx, id, qualified))
}

func jan(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

func TestRun_PromotesAndPaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.invest(t, "a", 1000, jan(5))
	f.invest(t, "b", 2000, time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))
	f.invest(t, "c", 3000, time.Date(2024, 12, 21, 0, 0, 0, 0, time.UTC))

	feb1 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	report, err := f.engine.Run(ctx, "2025-01", feb1)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Evaluated)
	require.Len(t, report.Promotions, 1, "only one recruit qualified in January, so level 3 is out of reach")
	assert.Equal(t, Promotion{UserID: "lead", From: 1, To: 2, Bonus: report.Promotions[0].Bonus}, report.Promotions[0])
	assert.Equal(t, "100", report.LeadershipTotal.String())
	assert.Equal(t, "6", report.AssetGrowthTotal.String(), "0.001 x 6000")

	lead, err := f.users.Get(ctx, "lead")
	require.NoError(t, err)
	assert.Equal(t, 2, lead.Rank)

	paid, err := f.bonuses.ListBonuses(ctx, ledger.BonusFilter{UserID: "lead"})
	require.NoError(t, err)
	require.Len(t, paid, 2)
	for _, b := range paid {
		assert.Equal(t, feb1, b.Date)
		assert.Equal(t, "2025-01", b.Details.Month)
	}

	again, err := f.engine.Run(ctx, "2025-01", feb1)
	require.NoError(t, err)
	assert.Zero(t, again.Evaluated)
	assert.Equal(t, 4, again.Skipped)
	assert.Empty(t, again.Promotions)

	events, err := f.events.ListByUser(ctx, "lead")
	require.NoError(t, err)
	assert.Len(t, events, 2, "second run pays nothing")
}

func TestRun_FrozenRecruitsDoNotCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.invest(t, "a", 1000, jan(5))
	f.invest(t, "b", 1000, jan(6))
	f.invest(t, "c", 1000, jan(7))
	require.NoError(t, f.users.SetFrozen(ctx, "c", true))

	report, err := f.engine.Run(ctx, "2025-01", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, report.Promotions)
	assert.Equal(t, "3", report.AssetGrowthTotal.String(), "asset growth covers the whole downline")
}

func TestRun_RejectsOpenMonth(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Run(context.Background(), "2025-01", jan(31))
	assert.ErrorIs(t, err, domain.ErrMonthNotClosed)

	_, err = f.engine.Run(context.Background(), "January", jan(31))
	assert.True(t, domain.IsValidation(err))
}

func TestRun_IgnoresUsersWhoJoinedAfterMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.invest(t, "a", 1000, jan(5))

	feb5 := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.users.Create(ctx, &domain.User{
		ID:              "late",
		UplineID:        strPtr("a"),
		TotalInvestment: decimal.NewFromInt(5000),
		JoinDate:        feb5,
		QualifiedAt:     &feb5,
	}))

	report, err := f.engine.Run(ctx, "2025-01", time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Evaluated)
	assert.Equal(t, "1", report.AssetGrowthTotal.String(), "only a's 1000 counts for january")

	late, err := f.bonuses.ListBonuses(ctx, ledger.BonusFilter{UserID: "late"})
	require.NoError(t, err)
	assert.Empty(t, late)

	// february includes late and pays on the first of march, not on today
	report, err = f.engine.Run(ctx, "2025-02", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, "11", report.AssetGrowthTotal.String(), "lead 0.001 x 6000, a 0.001 x 5000")

	paid, err := f.bonuses.ListBonuses(ctx, ledger.BonusFilter{UserID: "a"})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "2025-02", paid[0].Details.Month)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), paid[0].Date)
}

func strPtr(s string) *string { return &s }

func TestTargetRank_MinTotalInvestment(t *testing.T) {
	minTotal := decimal.NewFromInt(500)
	ladder := []domain.Rank{
		{Level: 1},
		{Level: 2, MinAccounts: 1},
		{Level: 3, MinAccounts: 1, MinTotalInvestment: &minTotal},
	}
	stats := Stats{ActiveDownline: 2, NewlyQualified: 0}

	poor := &domain.User{TotalInvestment: decimal.NewFromInt(100)}
	assert.Equal(t, 2, TargetRank(poor, stats, ladder).Level)

	rich := &domain.User{TotalInvestment: decimal.NewFromInt(500)}
	assert.Equal(t, 3, TargetRank(rich, stats, ladder).Level)
}

func TestComputeStats_CyclicGraph(t *testing.T) {
	x, y, z := "x", "y", "z"
	q := jan(10)
	all := []domain.User{
		{ID: "x", UplineID: &z, TotalInvestment: decimal.NewFromInt(10)},
		{ID: "y", UplineID: &x, TotalInvestment: decimal.NewFromInt(20), QualifiedAt: &q},
		{ID: "z", UplineID: &y, TotalInvestment: decimal.Zero},
	}

	stats, err := ComputeStats(context.Background(), referral.NewGraph(all), all, jan(1), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, 1, stats[0].ActiveDownline, "x sees y (active) and z (no investment)")
	assert.Equal(t, 1, stats[0].NewlyQualified)
	assert.Equal(t, "20", stats[0].DownlineInvestment.String())
}
