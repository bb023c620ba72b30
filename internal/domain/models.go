// Package domain holds the ledger's shared types and error taxonomy.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MinRank and MaxRank bound the rank ladder
	MinRank = 1
	MaxRank = 9
	// TeamBuilderLevels is how far up the upline chain the team-builder cascade pays
	TeamBuilderLevels = 9
)

// EventKind classifies a ledger event
type EventKind string

const (
	KindDeposit         EventKind = "deposit"
	KindWithdrawal      EventKind = "withdrawal"
	KindInvestment      EventKind = "investment"
	KindReinvestment    EventKind = "reinvestment"
	KindBonus           EventKind = "bonus"
	KindManualBonus     EventKind = "manual_bonus"
	KindManualDeduction EventKind = "manual_deduction"
	KindProfitShare     EventKind = "profit_share"
)

// Valid reports whether k is a known kind
func (k EventKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindInvestment, KindReinvestment,
		KindBonus, KindManualBonus, KindManualDeduction, KindProfitShare:
		return true
	}
	return false
}

// CarriesStatus reports whether events of this kind go through the pending workflow
func (k EventKind) CarriesStatus() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// EventStatus is the settlement state of a deposit or withdrawal.
// Every other kind is status-less (empty).
type EventStatus string

const (
	StatusNone      EventStatus = ""
	StatusPending   EventStatus = "pending"
	StatusCompleted EventStatus = "completed"
	StatusRejected  EventStatus = "rejected"
)

// BonusType identifies which commission rule produced a payout
type BonusType string

const (
	BonusInstant     BonusType = "instant"
	BonusTeamBuilder BonusType = "team_builder"
	BonusLeadership  BonusType = "leadership"
	BonusAssetGrowth BonusType = "asset_growth"
)

// Instant bonus recipients
const (
	RoleInvestor = "investor"
	RoleReferrer = "referrer"
	RoleUpline   = "upline"
)

// User is a ledger account holder
type User struct {
	ID              string          `json:"id"`
	UplineID        *string         `json:"upline_id,omitempty"`
	ReferrerID      *string         `json:"referrer_id,omitempty"`
	Rank            int             `json:"rank"`
	TotalInvestment decimal.Decimal `json:"total_investment"`
	JoinDate        time.Time       `json:"join_date"`
	Frozen          bool            `json:"frozen"`
	QualifiedAt     *time.Time      `json:"qualified_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Referrer returns whose referral code the user signed up with.
// Falls back to the direct upline when no separate referrer was recorded.
func (u *User) Referrer() *string {
	if u.ReferrerID != nil {
		return u.ReferrerID
	}
	return u.UplineID
}

// Active reports whether the user counts towards downline thresholds
func (u *User) Active() bool {
	return !u.Frozen && u.TotalInvestment.IsPositive()
}

// LedgerEvent is one immutable entry of the append-only ledger
type LedgerEvent struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"user_id"`
	Kind         EventKind       `json:"kind"`
	BonusType    BonusType       `json:"bonus_type,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Status       EventStatus     `json:"status,omitempty"`
	InvestmentID *int64          `json:"investment_id,omitempty"`
	SourceID     string          `json:"source_id,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Effective reports whether the event contributes to balances
func (e *LedgerEvent) Effective() bool {
	return e.Status == StatusNone || e.Status == StatusCompleted
}

// InvestmentStatus is the lifecycle state of an investment
type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentCompleted InvestmentStatus = "completed"
)

// InvestmentSource records where the invested funds came from
type InvestmentSource string

const (
	SourceDeposit            InvestmentSource = "deposit"
	SourceProfitReinvestment InvestmentSource = "profit_reinvestment"
)

// Investment is a position in an asset that accrues daily profit while active
type Investment struct {
	ID                int64            `json:"id"`
	UserID            string           `json:"user_id"`
	AssetID           string           `json:"asset_id"`
	Amount            decimal.Decimal  `json:"amount"`
	Status            InvestmentStatus `json:"status"`
	TotalProfitEarned decimal.Decimal  `json:"total_profit_earned"`
	Source            InvestmentSource `json:"source"`
	StartDate         time.Time        `json:"start_date"`
	EventID           int64            `json:"event_id"`
	CreatedAt         time.Time        `json:"created_at"`
}

// BonusDetails explains how a payout amount was derived
type BonusDetails struct {
	Rate         string `msgpack:"rate,omitempty" json:"rate,omitempty"`
	BaseAmount   string `msgpack:"base,omitempty" json:"base,omitempty"`
	InvestmentID int64  `msgpack:"investment_id,omitempty" json:"investment_id,omitempty"`
	AssetID      string `msgpack:"asset_id,omitempty" json:"asset_id,omitempty"`
	Month        string `msgpack:"month,omitempty" json:"month,omitempty"`
	FromRank     int    `msgpack:"from_rank,omitempty" json:"from_rank,omitempty"`
	ToRank       int    `msgpack:"to_rank,omitempty" json:"to_rank,omitempty"`
}

// Bonus is the audit record behind a bonus ledger event
type Bonus struct {
	ID       int64           `json:"id"`
	Type     BonusType       `json:"type"`
	Level    int             `json:"level,omitempty"`
	Role     string          `json:"role,omitempty"`
	UserID   string          `json:"user_id"`
	SourceID string          `json:"source_id"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
	EventID  int64           `json:"event_id"`
	BatchID  string          `json:"batch_id"`
	Details  BonusDetails    `json:"details"`
}

// Rank is one rung of the rank ladder
type Rank struct {
	Level              int              `json:"level"`
	MinAccounts        int              `json:"min_accounts"`
	NewlyQualified     int              `json:"newly_qualified"`
	FixedBonus         decimal.Decimal  `json:"fixed_bonus"`
	MinTotalInvestment *decimal.Decimal `json:"min_total_investment,omitempty"`
}

// AssetKind distinguishes projects from pools
type AssetKind string

const (
	AssetProject AssetKind = "project"
	AssetPool    AssetKind = "pool"
)

// Asset is an investable project or pool
type Asset struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Kind          AssetKind       `json:"kind"`
	APY           decimal.Decimal `json:"apy"` // percent, 10 = 10%
	MinInvestment decimal.Decimal `json:"min_investment"`
	// TeamBuilderRates overrides the global cascade when set; index 0 is level 1
	TeamBuilderRates []decimal.Decimal `json:"team_builder_rates,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
