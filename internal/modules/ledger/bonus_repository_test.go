package ledger

import (
	"context"
	"testing"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBonusRepository_RecordAndList(t *testing.T) {
	db := newLedgerDB(t)
	events := NewRepository(db.Conn(), zerolog.Nop())
	bonuses := NewBonusRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	eventID, err := events.Append(ctx, &domain.LedgerEvent{
		UserID:    "alice",
		Kind:      domain.KindBonus,
		BonusType: domain.BonusTeamBuilder,
		Amount:    decimal.NewFromInt(30),
		Date:      day(4),
		SourceID:  "investment:7",
	})
	require.NoError(t, err)

	_, err = bonuses.Record(ctx, &domain.Bonus{
		Type:     domain.BonusTeamBuilder,
		Level:    2,
		UserID:   "alice",
		SourceID: "investment:7",
		Amount:   decimal.NewFromInt(30),
		Date:     day(4),
		EventID:  eventID,
		BatchID:  "batch-1",
		Details:  domain.BonusDetails{Rate: "0.03", BaseAmount: "1000", InvestmentID: 7},
	})
	require.NoError(t, err)

	got, err := bonuses.ListBonuses(ctx, BonusFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Level)
	assert.Equal(t, eventID, got[0].EventID)
	assert.Equal(t, "0.03", got[0].Details.Rate)
	assert.Equal(t, int64(7), got[0].Details.InvestmentID)

	n, err := bonuses.CountBySource(ctx, domain.BonusTeamBuilder, "investment:7")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	none, err := bonuses.ListBonuses(ctx, BonusFilter{Type: domain.BonusLeadership})
	require.NoError(t, err)
	assert.Empty(t, none)
}
