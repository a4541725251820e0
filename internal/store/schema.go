package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    path TEXT NOT NULL,
    uri TEXT NOT NULL,
    line INTEGER NOT NULL,
    col INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    end_col INTEGER NOT NULL,
    UNIQUE(name, kind, path, line)
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_path ON symbols(path);

CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    symbols INTEGER NOT NULL,
    indexed_at INTEGER NOT NULL
);
`

func initSchema(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == nil:
		if version > schemaVersion {
			return fmt.Errorf("snapshot schema version %d is newer than supported version %d", version, schemaVersion)
		}
		if version < schemaVersion {
			if _, err := db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
				return fmt.Errorf("updating schema version: %w", err)
			}
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// table exists but was never stamped
	default:
		// fresh database, schema_version missing
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	return nil
}
