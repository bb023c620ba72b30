package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/shopspring/decimal"
)

// MockLedger is an in-memory event ledger and bonus recorder for unit tests.
// It satisfies the appender, event source and recorder interfaces the engines depend on.
type MockLedger struct {
	mu      sync.RWMutex
	events  []domain.LedgerEvent
	bonuses []domain.Bonus
	nextID  int64
	err     error
}

// NewMockLedger creates an empty mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		events:  make([]domain.LedgerEvent, 0),
		bonuses: make([]domain.Bonus, 0),
	}
}

// SetError makes every subsequent write fail with err
func (m *MockLedger) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Append stores a copy of event and assigns it an id
func (m *MockLedger) Append(ctx context.Context, event *domain.LedgerEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if event.Amount.IsNegative() {
		return 0, domain.Invalid("amount", domain.ErrInvalidAmount)
	}
	m.nextID++
	event.ID = m.nextID
	m.events = append(m.events, *event)
	return event.ID, nil
}

// AppendBatch stores every event or none of them
func (m *MockLedger) AppendBatch(ctx context.Context, events []*domain.LedgerEvent) ([]int64, error) {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return nil, m.err
	}
	m.mu.Unlock()

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		if e.Amount.IsNegative() {
			return nil, domain.Invalid("amount", domain.ErrInvalidAmount)
		}
	}
	for _, e := range events {
		id, err := m.Append(ctx, e)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListByUser returns a user's events in append order
func (m *MockLedger) ListByUser(ctx context.Context, userID string) ([]domain.LedgerEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.LedgerEvent, 0)
	for _, e := range m.events {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

// Events returns every stored event
func (m *MockLedger) Events() []domain.LedgerEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.LedgerEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Record stores a bonus audit row
func (m *MockLedger) Record(ctx context.Context, b *domain.Bonus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	b.ID = int64(len(m.bonuses) + 1)
	m.bonuses = append(m.bonuses, *b)
	return b.ID, nil
}

// Bonuses returns every recorded bonus
func (m *MockLedger) Bonuses() []domain.Bonus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Bonus, len(m.bonuses))
	copy(out, m.bonuses)
	return out
}

// MockInvestmentStore holds investments in memory
type MockInvestmentStore struct {
	mu          sync.RWMutex
	investments map[int64]*domain.Investment
	order       []int64
	err         error
}

// NewMockInvestmentStore creates a store seeded with investments
func NewMockInvestmentStore(investments ...domain.Investment) *MockInvestmentStore {
	m := &MockInvestmentStore{investments: make(map[int64]*domain.Investment)}
	for i := range investments {
		inv := investments[i]
		if inv.Status == "" {
			inv.Status = domain.InvestmentActive
		}
		m.investments[inv.ID] = &inv
		m.order = append(m.order, inv.ID)
	}
	return m
}

// SetError makes AddProfit fail with err
func (m *MockInvestmentStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ListActive returns active investments in insertion order
func (m *MockInvestmentStore) ListActive(ctx context.Context) ([]domain.Investment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.Investment, 0, len(m.order))
	for _, id := range m.order {
		if inv := m.investments[id]; inv.Status == domain.InvestmentActive {
			result = append(result, *inv)
		}
	}
	return result, nil
}

// AddProfit increases an investment's earned profit
func (m *MockInvestmentStore) AddProfit(ctx context.Context, id int64, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	inv, ok := m.investments[id]
	if !ok {
		return fmt.Errorf("investment %d: %w", id, domain.ErrNotFound)
	}
	if delta.IsNegative() {
		return errors.New("profit delta must not be negative")
	}
	inv.TotalProfitEarned = inv.TotalProfitEarned.Add(delta)
	return nil
}

// Get returns a copy of an investment, nil when unknown
func (m *MockInvestmentStore) Get(id int64) *domain.Investment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.investments[id]
	if !ok {
		return nil
	}
	c := *inv
	return &c
}

// MockAssetCatalog serves asset lookups from memory
type MockAssetCatalog struct {
	mu     sync.RWMutex
	assets map[string]domain.Asset
	err    error
}

// NewMockAssetCatalog creates a catalog holding assets
func NewMockAssetCatalog(assets ...domain.Asset) *MockAssetCatalog {
	m := &MockAssetCatalog{assets: make(map[string]domain.Asset)}
	for _, a := range assets {
		m.assets[a.ID] = a
	}
	return m
}

// SetError makes every lookup fail with err
func (m *MockAssetCatalog) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockAssetCatalog) get(id string) (domain.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return domain.Asset{}, m.err
	}
	a, ok := m.assets[id]
	if !ok {
		return domain.Asset{}, fmt.Errorf("asset %s: %w", id, domain.ErrUnknownAsset)
	}
	return a, nil
}

// GetAPY returns the asset's APY in percent
func (m *MockAssetCatalog) GetAPY(ctx context.Context, id string) (decimal.Decimal, error) {
	a, err := m.get(id)
	return a.APY, err
}

// GetMinInvestment returns the asset's minimum investment
func (m *MockAssetCatalog) GetMinInvestment(ctx context.Context, id string) (decimal.Decimal, error) {
	a, err := m.get(id)
	return a.MinInvestment, err
}

// GetTeamBuilderRates returns the asset's override table
func (m *MockAssetCatalog) GetTeamBuilderRates(ctx context.Context, id string) ([]decimal.Decimal, error) {
	a, err := m.get(id)
	return a.TeamBuilderRates, err
}
