package utils

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar date format used across the ledger
	DateLayout = "2006-01-02"
	// MonthLayout identifies a rank cycle period
	MonthLayout = "2006-01"
)

// StartOfDay truncates t to midnight UTC
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateToUnix converts a YYYY-MM-DD string to a Unix timestamp at midnight UTC
func DateToUnix(date string) (int64, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// UnixToDate converts a Unix timestamp to a midnight UTC time
func UnixToDate(ts int64) time.Time {
	return StartOfDay(time.Unix(ts, 0))
}

// FormatDate renders t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// MonthKey renders the calendar month containing t, e.g. "2025-03"
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// MonthStart returns the first day of the month containing t
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonth parses a "YYYY-MM" key into the first day of that month
func ParseMonth(key string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q (expected YYYY-MM): %w", key, err)
	}
	return t.UTC(), nil
}

// MonthBounds returns [start, end) for the month identified by key
func MonthBounds(key string) (time.Time, time.Time, error) {
	start, err := ParseMonth(key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 1, 0), nil
}

// MonthsEnded lists the months that close when the date moves from `from` to `to`,
// oldest first. Moving from 2025-01-30 to 2025-03-02 ends "2025-01" and "2025-02".
func MonthsEnded(from, to time.Time) []string {
	var months []string
	cursor := MonthStart(from)
	last := MonthStart(to)
	for cursor.Before(last) {
		months = append(months, MonthKey(cursor))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return months
}
