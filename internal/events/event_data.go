package events

import (
	"encoding/json"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// UserCreatedData contains data for UserCreated events
type UserCreatedData struct {
	UserID   string `json:"user_id"`
	UplineID string `json:"upline_id,omitempty"`
}

// EventType returns the event type for UserCreatedData
func (d *UserCreatedData) EventType() EventType {
	return UserCreated
}

// UserUpdatedData contains data for admin changes to a user
type UserUpdatedData struct {
	UserID string `json:"user_id"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// EventType returns the event type for UserUpdatedData
func (d *UserUpdatedData) EventType() EventType {
	return UserUpdated
}

// LedgerEventAppendedData contains data for LedgerEventAppended events
type LedgerEventAppendedData struct {
	EventID int64  `json:"event_id"`
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Amount  string `json:"amount"`
	Status  string `json:"status,omitempty"`
}

// EventType returns the event type for LedgerEventAppendedData
func (d *LedgerEventAppendedData) EventType() EventType {
	return LedgerEventAppended
}

// LedgerStatusChangedData contains data for LedgerStatusChanged events
type LedgerStatusChangedData struct {
	EventID int64  `json:"event_id"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
}

// EventType returns the event type for LedgerStatusChangedData
func (d *LedgerStatusChangedData) EventType() EventType {
	return LedgerStatusChanged
}

// InvestmentData contains data for investment lifecycle events
type InvestmentData struct {
	InvestmentID int64  `json:"investment_id"`
	UserID       string `json:"user_id"`
	AssetID      string `json:"asset_id"`
	Amount       string `json:"amount"`
	Source       string `json:"source"`
	Completed    bool   `json:"completed,omitempty"`
}

// EventType returns InvestmentCompleted for closed positions and InvestmentCreated otherwise
func (d *InvestmentData) EventType() EventType {
	if d.Completed {
		return InvestmentCompleted
	}
	return InvestmentCreated
}

// CommissionPaidData contains data for CommissionPaid events
type CommissionPaidData struct {
	InvestmentID int64  `json:"investment_id"`
	BatchID      string `json:"batch_id"`
	Payouts      int    `json:"payouts"`
	Total        string `json:"total"`
}

// EventType returns the event type for CommissionPaidData
func (d *CommissionPaidData) EventType() EventType {
	return CommissionPaid
}

// ClockAdvancedData contains data for ClockAdvanced events
type ClockAdvancedData struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	Days         int      `json:"days"`
	ProfitEvents int      `json:"profit_events"`
	Months       []string `json:"months,omitempty"`
}

// EventType returns the event type for ClockAdvancedData
func (d *ClockAdvancedData) EventType() EventType {
	return ClockAdvanced
}

// RankCycleCompletedData contains data for RankCycleCompleted events
type RankCycleCompletedData struct {
	Month      string `json:"month"`
	RunID      string `json:"run_id"`
	Evaluated  int    `json:"evaluated"`
	Skipped    int    `json:"skipped"`
	Promotions int    `json:"promotions"`
}

// EventType returns the event type for RankCycleCompletedData
func (d *RankCycleCompletedData) EventType() EventType {
	return RankCycleCompleted
}

// AssetCreatedData contains data for AssetCreated events
type AssetCreatedData struct {
	AssetID string `json:"asset_id"`
	Kind    string `json:"kind"`
	APY     string `json:"apy"`
}

// EventType returns the event type for AssetCreatedData
func (d *AssetCreatedData) EventType() EventType {
	return AssetCreated
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string  `json:"key"`
	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration_seconds"`
	Rotated   int     `json:"rotated"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// ToMap flattens typed event data into the map carried by Event
func ToMap(data EventData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return out
}
