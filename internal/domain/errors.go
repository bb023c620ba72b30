package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Compare with errors.Is.
var (
	ErrNotFound                = errors.New("resource not found")
	ErrUnknownUser             = errors.New("unknown user")
	ErrUnknownAsset            = errors.New("unknown asset")
	ErrDuplicateUser           = errors.New("user already exists")
	ErrDuplicateAsset          = errors.New("asset already exists")
	ErrInvalidAmount           = errors.New("amount must be non-negative")
	ErrNonPositiveAmount       = errors.New("amount must be positive")
	ErrBelowMinimum            = errors.New("amount below asset minimum investment")
	ErrInvalidKind             = errors.New("unknown event kind")
	ErrInvalidStatus           = errors.New("status not allowed for event kind")
	ErrInvalidStatusTransition = errors.New("status can only change from pending")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInvalidRank             = errors.New("rank must be between 1 and 9")
	ErrInvalidDays             = errors.New("days must not be negative")
	ErrUserFrozen              = errors.New("user is frozen")
	ErrInvestmentClosed        = errors.New("investment already completed")
	ErrCycleAlreadyProcessed   = errors.New("rank cycle already processed for month")
	ErrMonthNotClosed          = errors.New("month has not ended yet")
	ErrMonthBeforeStart        = errors.New("month is before the ledger start")
)

// ValidationError is returned for input rejected before anything is written
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid wraps err as a ValidationError on field
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is, or wraps, a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
