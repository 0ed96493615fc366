// Package history persists pipeline runs and the context store change log.
package history

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"icpscout/internal/config"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP,
	research_mode TEXT NOT NULL DEFAULT '',
	scoring_mode  TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT '',
	documents     INTEGER NOT NULL DEFAULT 0,
	candidates    INTEGER NOT NULL DEFAULT 0,
	identities    INTEGER NOT NULL DEFAULT 0,
	researched    INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	cancelled     INTEGER NOT NULL DEFAULT 0,
	high_fit      INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS store_events (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	company_key TEXT NOT NULL,
	field       TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_store_events_key ON store_events(company_key);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	research_mode TEXT NOT NULL DEFAULT '',
	scoring_mode  TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT '',
	documents     INTEGER NOT NULL DEFAULT 0,
	candidates    INTEGER NOT NULL DEFAULT 0,
	identities    INTEGER NOT NULL DEFAULT 0,
	researched    INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	cancelled     INTEGER NOT NULL DEFAULT 0,
	high_fit      INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS store_events (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	company_key TEXT NOT NULL,
	field       TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_store_events_key ON store_events(company_key);
`

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to the history database and applies the schema.
func Open(cfg *config.HistoryConfig) (*sqlx.DB, error) {
	var schema string
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating history dir: %w", err)
			}
		}
		schema = sqliteSchema
	case "pgx":
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}

	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// one writer at a time avoids SQLITE_BUSY under the worker pool
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma fk: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return db, nil
}
