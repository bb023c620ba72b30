package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var nextID int64

func ev(kind domain.EventKind, amount string, d int, status domain.EventStatus) domain.LedgerEvent {
	nextID++
	return domain.LedgerEvent{
		ID:     nextID,
		Kind:   kind,
		Amount: decimal.RequireFromString(amount),
		Date:   time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC),
		Status: status,
	}
}

func assertBalances(t *testing.T, b Balances, deposit, profit string) {
	t.Helper()
	assert.True(t, b.Deposit.Equal(decimal.RequireFromString(deposit)), "deposit: got %s want %s", b.Deposit, deposit)
	assert.True(t, b.Profit.Equal(decimal.RequireFromString(profit)), "profit: got %s want %s", b.Profit, profit)
}

func TestProject_CreditsAndDebits(t *testing.T) {
	b := Project([]domain.LedgerEvent{
		ev(domain.KindDeposit, "1000", 1, domain.StatusCompleted),
		ev(domain.KindInvestment, "600", 2, domain.StatusNone),
		ev(domain.KindBonus, "24", 2, domain.StatusNone),
		ev(domain.KindProfitShare, "6", 3, domain.StatusNone),
		ev(domain.KindManualBonus, "10", 3, domain.StatusNone),
		ev(domain.KindReinvestment, "15", 4, domain.StatusNone),
		ev(domain.KindManualDeduction, "50", 4, domain.StatusNone),
	})
	assertBalances(t, b, "350", "25")
}

func TestProject_IgnoresPendingAndRejected(t *testing.T) {
	b := Project([]domain.LedgerEvent{
		ev(domain.KindDeposit, "500", 1, domain.StatusPending),
		ev(domain.KindDeposit, "300", 1, domain.StatusRejected),
		ev(domain.KindDeposit, "200", 1, domain.StatusCompleted),
		ev(domain.KindWithdrawal, "50", 2, domain.StatusPending),
	})
	assertBalances(t, b, "200", "0")
}

func TestProject_WithdrawalSpendsProfitFirst(t *testing.T) {
	base := []domain.LedgerEvent{
		ev(domain.KindDeposit, "1000", 1, domain.StatusCompleted),
		ev(domain.KindBonus, "100", 2, domain.StatusNone),
	}

	// Profit covers the withdrawal
	covered := append(append([]domain.LedgerEvent{}, base...), ev(domain.KindWithdrawal, "60", 3, domain.StatusCompleted))
	assertBalances(t, Project(covered), "1000", "40")

	// Profit runs out, remainder comes from deposit
	spill := append(append([]domain.LedgerEvent{}, base...), ev(domain.KindWithdrawal, "250", 3, domain.StatusCompleted))
	assertBalances(t, Project(spill), "850", "0")
}

func TestProject_FloorsAtZero(t *testing.T) {
	b := Project([]domain.LedgerEvent{
		ev(domain.KindDeposit, "100", 1, domain.StatusCompleted),
		ev(domain.KindInvestment, "150", 2, domain.StatusNone),
		ev(domain.KindReinvestment, "5", 2, domain.StatusNone),
		ev(domain.KindWithdrawal, "999", 3, domain.StatusCompleted),
		ev(domain.KindDeposit, "40", 4, domain.StatusCompleted),
	})
	assertBalances(t, b, "40", "0")
	assert.False(t, b.Deposit.IsNegative())
	assert.False(t, b.Profit.IsNegative())
}

func TestProject_ChronologicalNotInsertionOrder(t *testing.T) {
	withdraw := ev(domain.KindWithdrawal, "100", 5, domain.StatusCompleted)
	deposit := ev(domain.KindDeposit, "100", 1, domain.StatusCompleted)
	bonus := ev(domain.KindBonus, "30", 3, domain.StatusNone)

	// Replayed as deposit, bonus, withdrawal regardless of slice order
	b := Project([]domain.LedgerEvent{withdraw, bonus, deposit})
	assertBalances(t, b, "30", "0")
}

func TestProjectWithPending_SettlesPendingWithdrawals(t *testing.T) {
	events := []domain.LedgerEvent{
		ev(domain.KindDeposit, "1000", 1, domain.StatusCompleted),
		ev(domain.KindBonus, "40", 2, domain.StatusNone),
		ev(domain.KindWithdrawal, "60", 3, domain.StatusPending),
		ev(domain.KindWithdrawal, "500", 3, domain.StatusRejected),
	}

	assertBalances(t, Project(events), "1000", "40")
	assertBalances(t, ProjectWithPending(events), "980", "0")
}

type mockEventSource struct {
	mock.Mock
}

func (m *mockEventSource) ListByUser(ctx context.Context, userID string) ([]domain.LedgerEvent, error) {
	args := m.Called(ctx, userID)
	events, _ := args.Get(0).([]domain.LedgerEvent)
	return events, args.Error(1)
}

func TestProjector_Available(t *testing.T) {
	source := new(mockEventSource)
	source.On("ListByUser", mock.Anything, "alice").Return([]domain.LedgerEvent{
		ev(domain.KindDeposit, "500", 1, domain.StatusCompleted),
		ev(domain.KindBonus, "20", 2, domain.StatusNone),
		ev(domain.KindWithdrawal, "100", 3, domain.StatusPending),
	}, nil)

	b, available, err := NewProjector(source).Available(context.Background(), "alice")
	require.NoError(t, err)
	assertBalances(t, b, "500", "20")
	assert.Equal(t, "420", available.String())
	source.AssertExpectations(t)
}

func TestProjector_Committed(t *testing.T) {
	source := new(mockEventSource)
	source.On("ListByUser", mock.Anything, "alice").Return([]domain.LedgerEvent{
		ev(domain.KindDeposit, "500", 1, domain.StatusCompleted),
		ev(domain.KindBonus, "20", 2, domain.StatusNone),
		ev(domain.KindWithdrawal, "100", 3, domain.StatusPending),
	}, nil)

	b, available, err := NewProjector(source).Committed(context.Background(), "alice")
	require.NoError(t, err)
	assertBalances(t, b, "420", "0")
	assert.Equal(t, "420", available.String())
	source.AssertExpectations(t)
}

func TestProjector_PropagatesError(t *testing.T) {
	source := new(mockEventSource)
	source.On("ListByUser", mock.Anything, "bob").Return(nil, errors.New("disk gone"))

	_, err := NewProjector(source).Project(context.Background(), "bob")
	assert.Error(t, err)
}
