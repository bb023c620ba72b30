// Package testing provides testing utilities and helpers for the tierledger project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/tierledger/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB creates a temporary-file SQLite database for testing with automatic schema migration.
// Returns the database instance and a cleanup function that closes the connection.
// The cleanup function is idempotent and can be called multiple times safely.
//
// Supported schema names:
//   - "ledger" - applies ledger_schema.sql (ledger profile)
//   - "config" - applies config_schema.sql
//   - Unknown names - creates empty database (no schema applied)
//
// TIERLEDGER_TEST_DB_DRIVER selects the driver ("sqlite" or "sqlite3"); the
// pure Go driver is used when it is unset.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// Temporary files rather than :memory: so every pooled connection sees the same database
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	profile := database.ProfileStandard
	if name == "ledger" {
		profile = database.ProfileLedger
	}

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profile,
		Name:    name,
		Driver:  os.Getenv("TIERLEDGER_TEST_DB_DRIVER"),
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	}
}

// NewLedgerTestDBs creates migrated ledger and config databases and registers cleanup with t
func NewLedgerTestDBs(t *testing.T) (ledgerDB, configDB *database.DB) {
	t.Helper()

	ledgerDB, cleanupLedger := NewTestDB(t, "ledger")
	configDB, cleanupConfig := NewTestDB(t, "config")
	t.Cleanup(func() {
		cleanupLedger()
		cleanupConfig()
	})
	return ledgerDB, configDB
}
