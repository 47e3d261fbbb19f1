// Package index mirrors record collections into SQLite. The mirror is itself
// a storage.Provider, so the query engine can run against it directly.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is stored in PRAGMA user_version. The mirror only holds data
// derived from the store, so an older layout is dropped and rebuilt by the
// next Sync.
const schemaVersion = 1

const dropSQL = `DROP TABLE IF EXISTS records;`

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	file_name  TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, file_name)
);

CREATE INDEX IF NOT EXISTS idx_records_id ON records(collection, id);
`

// DB is the SQLite mirror.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the mirror at path and brings its schema up to
// date.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version == schemaVersion {
		_, err := conn.Exec(schemaSQL)
		if err != nil {
			return fmt.Errorf("index: apply schema: %w", err)
		}
		return nil
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("index: migrate: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(dropSQL + schemaSQL); err != nil {
		return fmt.Errorf("index: apply schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("index: write schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
