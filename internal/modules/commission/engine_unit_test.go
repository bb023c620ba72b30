package commission

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/referral"
	testingpkg "github.com/aristath/tierledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func memoryGraph() *referral.Graph {
	return referral.NewGraph([]domain.User{
		{ID: "root"},
		{ID: "mid", UplineID: strPtr("root")},
		{ID: "leaf", UplineID: strPtr("mid"), ReferrerID: strPtr("root")},
	})
}

func TestPay_InMemory_ExplicitReferrerDiffersFromUpline(t *testing.T) {
	mem := testingpkg.NewMockLedger()
	catalog := testingpkg.NewMockAssetCatalog(domain.Asset{ID: "solar"})
	rates := new(mockRates)
	rates.On("InstantRates").Return(specRates(), nil)
	rates.On("TeamBuilderRates").Return(flatTable("0.01", 9), nil)

	engine := NewEngine(mem, mem, catalog, rates, zerolog.Nop())
	result, err := engine.Pay(context.Background(), memoryGraph(), investment(1, "leaf", "1000"))
	require.NoError(t, err)

	paid := map[string]string{}
	for _, b := range result.Bonuses {
		paid[b.UserID+"/"+b.Role+"/"+string(b.Type)] = b.Amount.String()
	}
	assert.Equal(t, "40", paid["leaf/investor/instant"])
	assert.Equal(t, "40", paid["root/referrer/instant"])
	assert.Equal(t, "30", paid["mid/upline/instant"])
	assert.Equal(t, "10", paid["mid//team_builder"])
	assert.Equal(t, "10", paid["root//team_builder"])
	assert.Len(t, mem.Events(), len(mem.Bonuses()))
}

func TestPay_InMemory_BatchFailureRecordsNothing(t *testing.T) {
	mem := testingpkg.NewMockLedger()
	mem.SetError(errors.New("database is locked"))
	rates := new(mockRates)
	rates.On("InstantRates").Return(specRates(), nil)
	rates.On("TeamBuilderRates").Return(flatTable("0.01", 9), nil)

	engine := NewEngine(mem, mem, testingpkg.NewMockAssetCatalog(domain.Asset{ID: "solar"}), rates, zerolog.Nop())
	_, err := engine.Pay(context.Background(), memoryGraph(), investment(1, "leaf", "1000"))
	assert.Error(t, err)
	assert.Empty(t, mem.Events())
	assert.Empty(t, mem.Bonuses())
}
