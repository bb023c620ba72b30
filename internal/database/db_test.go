package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTempDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString_Modernc(t *testing.T) {
	connStr := buildConnectionString("/tmp/ledger.db", ProfileLedger, DriverModernc)

	assert.Contains(t, connStr, "/tmp/ledger.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, connStr, "_pragma=synchronous(FULL)")
	assert.Contains(t, connStr, "_pragma=busy_timeout(5000)")
	assert.NotContains(t, connStr, "temp_store")
}

func TestBuildConnectionString_Mattn(t *testing.T) {
	connStr := buildConnectionString("/tmp/config.db", ProfileStandard, DriverMattn)

	assert.Contains(t, connStr, "/tmp/config.db?_journal_mode=WAL")
	assert.Contains(t, connStr, "_synchronous=NORMAL")
	assert.Contains(t, connStr, "_foreign_keys=1")
	assert.NotContains(t, connStr, "_pragma")
}

func TestMigrate_LedgerSchema(t *testing.T) {
	db := newTempDB(t, "ledger", ProfileLedger)

	version, err := db.AppliedSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	require.NoError(t, db.Migrate())

	version, err = db.AppliedSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	// Migrating twice is harmless
	require.NoError(t, db.Migrate())

	for _, table := range []string{"users", "assets", "ledger_events", "investments", "bonuses", "rank_cycles", "clock_state"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestNew_MattnDriver(t *testing.T) {
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "config.db"),
		Profile: ProfileStandard,
		Name:    "config",
		Driver:  DriverMattn,
	})
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("mattn/go-sqlite3 needs cgo")
	}
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverMattn, db.Driver())
	require.NoError(t, db.Migrate())
	require.NoError(t, db.HealthCheck(context.Background()))
}

func TestMigrate_UnknownDatabaseIsSkipped(t *testing.T) {
	db := newTempDB(t, "scratch", ProfileStandard)
	require.NoError(t, db.Migrate())

	version, err := db.AppliedSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTempDB(t, "scratch", ProfileStandard)
	_, err := db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (name) VALUES ('a')"); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestInTx_Commits(t *testing.T) {
	db := newTempDB(t, "scratch", ProfileStandard)
	_, err := db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	err = db.InTx(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO items (name) VALUES ('a'), ('b')")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 2, count)
}
