package store

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Schema versions:
// v1: sessions and turns tables
// v2: turns.payload_json and sessions.label
const CurrentSchemaVersion = 2

const baseSchema = `
CREATE TABLE IF NOT EXISTS schema_versions (
	version    INTEGER NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	api_url     TEXT NOT NULL DEFAULT '',
	scenario_id INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	entry_id    TEXT NOT NULL,
	author      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	widget      TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	scenario_id INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	UNIQUE(session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);
`

// Migration adds a column that older databases lack.
type Migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []Migration{
	{"turns", "payload_json", "TEXT NOT NULL DEFAULT ''"},
	{"sessions", "label", "TEXT NOT NULL DEFAULT ''"},
}

// migrate creates the base schema and applies missing columns.
func migrate(db *sql.DB, log *zap.Logger) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) || columnExists(db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		log.Debug("column added", zap.String("table", m.Table), zap.String("column", m.Column))
		applied++
	}

	if schemaVersion(db) < CurrentSchemaVersion {
		if _, err := db.Exec("INSERT INTO schema_versions (version) VALUES (?)", CurrentSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	log.Debug("schema ready", zap.Int("version", CurrentSchemaVersion), zap.Int("migrations", applied))
	return nil
}

func schemaVersion(db *sql.DB) int {
	var version sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version); err != nil {
		return 0
	}
	return int(version.Int64)
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
