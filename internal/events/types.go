// Package events provides the in-process event bus used to notify collaborators of ledger changes.
package events

import "time"

// EventType identifies a kind of system event
type EventType string

const (
	UserCreated         EventType = "USER_CREATED"
	UserUpdated         EventType = "USER_UPDATED"
	LedgerEventAppended EventType = "LEDGER_EVENT_APPENDED"
	LedgerStatusChanged EventType = "LEDGER_STATUS_CHANGED"
	InvestmentCreated   EventType = "INVESTMENT_CREATED"
	InvestmentCompleted EventType = "INVESTMENT_COMPLETED"
	CommissionPaid      EventType = "COMMISSION_PAID"
	ClockAdvanced       EventType = "CLOCK_ADVANCED"
	RankCycleCompleted  EventType = "RANK_CYCLE_COMPLETED"
	AssetCreated        EventType = "ASSET_CREATED"
	SettingsChanged     EventType = "SETTINGS_CHANGED"
	BackupCompleted     EventType = "BACKUP_COMPLETED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, in a stable order
var AllTypes = []EventType{
	UserCreated,
	UserUpdated,
	LedgerEventAppended,
	LedgerStatusChanged,
	InvestmentCreated,
	InvestmentCompleted,
	CommissionPaid,
	ClockAdvanced,
	RankCycleCompleted,
	AssetCreated,
	SettingsChanged,
	BackupCompleted,
	ErrorOccurred,
}

// Event is a single published notification
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}
