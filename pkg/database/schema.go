package database

import (
	"database/sql"
	"fmt"
)

// Embedded schema migrations, applied in version order by MigrationManager.
// The classroom record keeps its document shape in JSON columns; chat lives
// in its own append-only table so rowid gives server-received order.
var migrations = []Migration{
	{
		Version:     "001",
		Description: "classrooms",
		SQL: `
			CREATE TABLE IF NOT EXISTS classrooms (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				seating_positions TEXT NOT NULL DEFAULT '{}',
				assigned_users TEXT NOT NULL DEFAULT '{}',
				chair_groups TEXT NOT NULL DEFAULT '[]',
				student_scores TEXT NOT NULL DEFAULT '{}',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version:     "002",
		Description: "chat_messages",
		SQL: `
			CREATE TABLE IF NOT EXISTS chat_messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				classroom_id TEXT NOT NULL REFERENCES classrooms(id),
				sender_id TEXT NOT NULL,
				sender_name TEXT NOT NULL,
				sender_photo TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				client_timestamp INTEGER NOT NULL DEFAULT 0,
				received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_chat_messages_classroom
				ON chat_messages(classroom_id, id);
		`,
	},
}

// SchemaValidator verifies the deployed schema matches expectations.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist.
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"classrooms":        "classroom record storage",
		"chat_messages":     "append-only chat log",
		"schema_migrations": "migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := tableExists(v.db, table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}
	return nil
}

// ValidateIndexes verifies that the chat history index exists.
func (v *SchemaValidator) ValidateIndexes() error {
	exists, err := indexExists(v.db, "idx_chat_messages_classroom")
	if err != nil {
		return fmt.Errorf("error checking chat index: %w", err)
	}
	if !exists {
		return fmt.Errorf("required index idx_chat_messages_classroom does not exist")
	}
	return nil
}

func tableExists(db *sql.DB, tableName string) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func indexExists(db *sql.DB, indexName string) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?",
		indexName,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
