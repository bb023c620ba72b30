package commission

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/assets"
	"github.com/aristath/tierledger/internal/modules/ledger"
	"github.com/aristath/tierledger/internal/modules/referral"
	"github.com/aristath/tierledger/internal/modules/settings"
	"github.com/aristath/tierledger/internal/modules/users"
	testingpkg "github.com/aristath/tierledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRates struct {
	mock.Mock
}

func (m *mockRates) InstantRates() (settings.InstantRates, error) {
	args := m.Called()
	return args.Get(0).(settings.InstantRates), args.Error(1)
}

func (m *mockRates) TeamBuilderRates() ([]decimal.Decimal, error) {
	args := m.Called()
	rates, _ := args.Get(0).([]decimal.Decimal)
	return rates, args.Error(1)
}

func specRates() settings.InstantRates {
	return settings.InstantRates{
		Investor: decimal.RequireFromString("0.04"),
		Referrer: decimal.RequireFromString("0.04"),
		Upline:   decimal.RequireFromString("0.03"),
	}
}

func flatTable(rate string, levels int) []decimal.Decimal {
	table := make([]decimal.Decimal, levels)
	for i := range table {
		table[i] = decimal.RequireFromString(rate)
	}
	return table
}

type fixture struct {
	db      *database.DB
	events  *ledger.Repository
	bonuses *ledger.BonusRepository
	engine  *Engine
	rates   *mockRates
}

func newFixture(t *testing.T, table []decimal.Decimal) *fixture {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)
	testingpkg.InsertAsset(t, db.Conn(), "solar", "10", "100")

	rates := new(mockRates)
	rates.On("InstantRates").Return(specRates(), nil)
	rates.On("TeamBuilderRates").Return(table, nil)

	log := zerolog.Nop()
	events := ledger.NewRepository(db.Conn(), log)
	bonuses := ledger.NewBonusRepository(db.Conn(), log)
	return &fixture{
		db:      db,
		events:  events,
		bonuses: bonuses,
		rates:   rates,
		engine:  NewEngine(events, bonuses, assets.NewRepository(db.Conn(), log), rates, log),
	}
}

func (f *fixture) graph(t *testing.T) *referral.Graph {
	t.Helper()
	all, err := users.NewRepository(f.db.Conn(), zerolog.Nop()).List(context.Background())
	require.NoError(t, err)
	return referral.NewGraph(all)
}

func investment(id int64, userID, amount string) *domain.Investment {
	return &domain.Investment{
		ID:        id,
		UserID:    userID,
		AssetID:   "solar",
		Amount:    decimal.RequireFromString(amount),
		Source:    domain.SourceDeposit,
		StartDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestPay_InstantOnlyWithoutUpline(t *testing.T) {
	f := newFixture(t, flatTable("0.01", 9))
	testingpkg.InsertUser(t, f.db.Conn(), "solo", "")
	ctx := context.Background()

	result, err := f.engine.Pay(ctx, f.graph(t), investment(1, "solo", "5000"))
	require.NoError(t, err)

	require.Len(t, result.Bonuses, 1)
	b := result.Bonuses[0]
	assert.Equal(t, "solo", b.UserID)
	assert.Equal(t, domain.BonusInstant, b.Type)
	assert.Equal(t, domain.RoleInvestor, b.Role)
	assert.True(t, b.Amount.Equal(decimal.NewFromInt(200)), "0.04 x 5000")
	assert.NotEmpty(t, result.BatchID)

	events, err := f.events.ListByUser(ctx, "solo")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.KindBonus, events[0].Kind)
	assert.Equal(t, b.EventID, events[0].ID)
}

func TestPay_InstantSplitsWithReferrerAndUpline(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.InsertUser(t, f.db.Conn(), "sponsor", "")
	testingpkg.InsertUser(t, f.db.Conn(), "investor", "sponsor")
	ctx := context.Background()

	result, err := f.engine.Pay(ctx, f.graph(t), investment(2, "investor", "1000"))
	require.NoError(t, err)

	// Referrer defaults to the upline, so the sponsor earns both shares
	byRole := map[string]decimal.Decimal{}
	for _, b := range result.Bonuses {
		byRole[b.Role] = b.Amount
	}
	assert.Equal(t, "40", byRole[domain.RoleInvestor].String())
	assert.Equal(t, "40", byRole[domain.RoleReferrer].String())
	assert.Equal(t, "30", byRole[domain.RoleUpline].String())
	assert.Equal(t, "110", result.Total.String())
}

func TestPay_TeamBuilderStopsAtNineLevels(t *testing.T) {
	f := newFixture(t, flatTable("0.01", 9))
	ids := testingpkg.InsertChain(t, f.db.Conn(), "u", 11) // u0 ... u10, u10 invests
	ctx := context.Background()

	result, err := f.engine.Pay(ctx, f.graph(t), investment(3, "u10", "1000"))
	require.NoError(t, err)

	levels := map[string]int{}
	for _, b := range result.Bonuses {
		if b.Type == domain.BonusTeamBuilder {
			levels[b.UserID] = b.Level
			assert.Equal(t, "10", b.Amount.String())
		}
	}
	assert.Len(t, levels, 9)
	assert.Equal(t, 1, levels["u9"])
	assert.Equal(t, 9, levels["u1"])
	_, paid := levels[ids[0]]
	assert.False(t, paid, "the 10th ancestor receives nothing")

	tb, err := f.bonuses.ListBonuses(ctx, ledger.BonusFilter{Type: domain.BonusTeamBuilder, SourceID: SourceID(3)})
	require.NoError(t, err)
	assert.Len(t, tb, 9)
}

func TestPay_AssetOverrideReplacesGlobalTable(t *testing.T) {
	f := newFixture(t, flatTable("0.01", 9))
	ctx := context.Background()

	require.NoError(t, assets.NewRepository(f.db.Conn(), zerolog.Nop()).Create(ctx, &domain.Asset{
		ID:               "pool",
		Name:             "Pool",
		Kind:             domain.AssetPool,
		APY:              decimal.NewFromInt(8),
		MinInvestment:    decimal.NewFromInt(10),
		TeamBuilderRates: []decimal.Decimal{decimal.RequireFromString("0.1")},
	}))
	testingpkg.InsertChain(t, f.db.Conn(), "c", 3)

	inv := investment(4, "c2", "100")
	inv.AssetID = "pool"
	result, err := f.engine.Pay(ctx, f.graph(t), inv)
	require.NoError(t, err)

	var teamBuilder []domain.Bonus
	for _, b := range result.Bonuses {
		if b.Type == domain.BonusTeamBuilder {
			teamBuilder = append(teamBuilder, b)
		}
	}
	require.Len(t, teamBuilder, 1, "override only has one level")
	assert.Equal(t, "c1", teamBuilder[0].UserID)
	assert.Equal(t, "10", teamBuilder[0].Amount.String())
	f.rates.AssertNotCalled(t, "TeamBuilderRates")
}

func TestPay_ReinvestmentPaysNothing(t *testing.T) {
	f := newFixture(t, flatTable("0.01", 9))
	testingpkg.InsertChain(t, f.db.Conn(), "r", 2)

	inv := investment(5, "r1", "1000")
	inv.Source = domain.SourceProfitReinvestment
	result, err := f.engine.Pay(context.Background(), f.graph(t), inv)
	require.NoError(t, err)
	assert.Empty(t, result.Bonuses)
	f.rates.AssertNotCalled(t, "InstantRates")
}

func TestPay_FailureLeavesNoPartialBatch(t *testing.T) {
	f := newFixture(t, flatTable("0.01", 9))
	testingpkg.InsertUser(t, f.db.Conn(), "solo", "")
	ctx := context.Background()

	inv := investment(6, "solo", "1000")
	inv.AssetID = "missing"
	_, err := f.engine.Pay(ctx, f.graph(t), inv)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)

	events, err := f.events.ListByUser(ctx, "solo")
	require.NoError(t, err)
	assert.Empty(t, events)
}
