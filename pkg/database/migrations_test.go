package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openTestDB(t)
	manager := NewMigrationManager(db)

	require.NoError(t, manager.ApplyMigrations())
	assert.NoError(t, manager.ValidateSchema())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)
	manager := NewMigrationManager(db)

	require.NoError(t, manager.ApplyMigrations())
	require.NoError(t, manager.ApplyMigrations())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestValidateSchema_FailsOnEmptyDatabase(t *testing.T) {
	db := openTestDB(t)

	err := NewMigrationManager(db).ValidateSchema()
	assert.Error(t, err)
}

func TestApplyPragmas(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, ApplyPragmas(db))

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.DatabasePath = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxConnections = 0
	assert.Error(t, cfg.Validate())
}
