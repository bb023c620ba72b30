package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/shopspring/decimal"
)

// FixtureDate is the default join and start date used by fixtures
var FixtureDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// InsertUser writes a user row directly, bypassing the service layer.
// upline may be empty for a root user.
func InsertUser(t *testing.T, q database.Querier, id, upline string) {
	t.Helper()

	var uplineID interface{}
	if upline != "" {
		uplineID = upline
	}
	_, err := q.ExecContext(context.Background(), `
		INSERT INTO users (id, upline_id, rank_level, total_investment, join_date, frozen, created_at)
		VALUES (?, ?, 1, '0', ?, 0, ?)
	`, id, uplineID, FixtureDate.Unix(), time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to insert user %s: %v", id, err)
	}
}

// InsertChain creates users u0..u{n-1} where each u{i} has u{i-1} as upline.
// Returns the ids, root first.
func InsertChain(t *testing.T, q database.Querier, prefix string, n int) []string {
	t.Helper()

	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("%s%d", prefix, i)
		upline := ""
		if i > 0 {
			upline = ids[i-1]
		}
		InsertUser(t, q, ids[i], upline)
	}
	return ids
}

// InsertAsset writes an asset row with no team-builder override
func InsertAsset(t *testing.T, q database.Querier, id string, apy, minInvestment string) {
	t.Helper()

	_, err := q.ExecContext(context.Background(), `
		INSERT INTO assets (id, name, kind, apy, min_investment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, "Asset "+id, string(domain.AssetPool), apy, minInvestment, time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to insert asset %s: %v", id, err)
	}
}

// Dec parses a decimal literal, failing the test on error
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Invalid decimal literal %q: %v", s, err)
	}
	return d
}
