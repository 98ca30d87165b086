package storage

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Migrate runs all database migrations
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		createServersTable,
		createServerChannelsTable,
		createMessagesTable,
		createSettingsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	// Columns added after the first release
	if err := addColumnIfMissing(db, "messages", "is_action",
		"ALTER TABLE messages ADD COLUMN is_action BOOLEAN NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("is_action migration failed: %w", err)
	}
	if err := addColumnIfMissing(db, "servers", "auto_connect",
		"ALTER TABLE servers ADD COLUMN auto_connect BOOLEAN NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("auto_connect migration failed: %w", err)
	}

	return nil
}

// addColumnIfMissing runs alterSQL unless table already has column
func addColumnIfMissing(db *sqlx.DB, table, column, alterSQL string) error {
	var columnExists int
	err := db.Get(&columnExists,
		fmt.Sprintf("SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name=?", table), column)
	if err != nil {
		return fmt.Errorf("failed to check for %s column: %w", column, err)
	}
	if columnExists > 0 {
		return nil
	}

	if _, err := db.Exec(alterSQL); err != nil {
		// Ignore "duplicate column" errors
		if !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("failed to add %s column: %w", column, err)
		}
	}
	return nil
}

const createServersTable = `
CREATE TABLE IF NOT EXISTS servers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    nickname TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const createServerChannelsTable = `
CREATE TABLE IF NOT EXISTS server_channels (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    auto_join BOOLEAN NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
    UNIQUE(server_id, name)
);
`

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server TEXT NOT NULL,
    channel TEXT NOT NULL,
    author TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'message',
    timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_messages_server_channel_time ON messages(server, channel, timestamp);
CREATE INDEX IF NOT EXISTS idx_server_channels_server ON server_channels(server_id);
`
