// Package ledger records exported documents and their assets in SQLite, with
// optional FTS5 full-text search over the exported bodies.
package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS exports (
	path             TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	series           TEXT NOT NULL DEFAULT '',
	language         TEXT NOT NULL DEFAULT '',
	tags             TEXT NOT NULL DEFAULT '[]',
	checksum         TEXT NOT NULL DEFAULT '',
	warnings         INTEGER NOT NULL DEFAULT 0,
	body             TEXT NOT NULL DEFAULT '',
	source_edited_at DATETIME,
	exported_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_exports_document ON exports(document_id);
CREATE INDEX IF NOT EXISTS idx_exports_category ON exports(category);

CREATE TABLE IF NOT EXISTS assets (
	export_path TEXT NOT NULL,
	asset       TEXT NOT NULL,
	UNIQUE(export_path, asset)
);

CREATE INDEX IF NOT EXISTS idx_assets_export ON assets(export_path);
`

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
