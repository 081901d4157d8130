package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] upgrades a database from schema version i to i+1.
var migrations = []func(*sql.Tx) error{
	createRunTables,
}

func currentSchemaVersion() int { return len(migrations) }

// migrate applies every pending migration in a single transaction.
func (db *DB) migrate(ctx context.Context) error {
	version, err := db.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	target := currentSchemaVersion()
	switch {
	case version == target:
		return nil
	case version > target:
		return fmt.Errorf("history database schema v%d is newer than supported v%d", version, target)
	}

	if version == 0 {
		db.logger.Info("Creating history database", "path", db.path)
	} else {
		db.logger.Info("Migrating history database", "path", db.path, "from_version", version, "to_version", target)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
			return err
		}
		for v := version; v < target; v++ {
			if err := migrations[v](tx); err != nil {
				return fmt.Errorf("migrate schema to v%d: %w", v+1, err)
			}
		}
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, target)
		return err
	})
}

// schemaVersion is 0 for a fresh file.
func (db *DB) schemaVersion(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`).Scan(&n)
	if err != nil || n == 0 {
		return 0, err
	}

	var version int
	err = db.QueryRow(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

// createRunTables holds one row per generate invocation plus its ranked
// rules. Rules are BLOBs so non-UTF-8 rule bytes survive.
func createRunTables(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			wordlist TEXT NOT NULL,
			wordlist_digest TEXT NOT NULL,
			method TEXT NOT NULL,
			params_json TEXT NOT NULL,
			words INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			clusters INTEGER NOT NULL,
			pairs INTEGER NOT NULL,
			dead_ends INTEGER NOT NULL,
			rule_file TEXT NOT NULL
		)`,
		`CREATE INDEX idx_runs_started ON runs(started_at)`,
		`CREATE TABLE run_rules (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			rule BLOB NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, rank)
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
