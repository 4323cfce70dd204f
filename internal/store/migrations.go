package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all qcal tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		execution_id TEXT PRIMARY KEY,
		username     TEXT NOT NULL,
		chip_id      TEXT NOT NULL,
		project_id   TEXT NOT NULL,
		state        TEXT NOT NULL DEFAULT 'PENDING',
		note         TEXT NOT NULL DEFAULT '',
		outcomes     TEXT NOT NULL DEFAULT '[]',
		started_at   TEXT NOT NULL,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS task_instances (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		id           TEXT NOT NULL,
		execution_id TEXT NOT NULL,
		task_name    TEXT NOT NULL,
		task_type    TEXT NOT NULL,
		backend      TEXT NOT NULL DEFAULT '',
		state        TEXT NOT NULL,
		target       TEXT NOT NULL DEFAULT '',
		input        TEXT NOT NULL DEFAULT '{}',
		output       TEXT NOT NULL DEFAULT '{}',
		error_kind   TEXT NOT NULL DEFAULT '',
		message      TEXT NOT NULL DEFAULT '',
		retry_count  INTEGER NOT NULL DEFAULT 0,
		max_retries  INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		started_at   TEXT,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS project_locks (
		project_id  TEXT PRIMARY KEY,
		owner       TEXT NOT NULL,
		acquired_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS execution_counters (
		date       TEXT NOT NULL,
		username   TEXT NOT NULL,
		chip_id    TEXT NOT NULL,
		project_id TEXT NOT NULL,
		value      INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, username, chip_id, project_id)
	)`,

	`CREATE TABLE IF NOT EXISTS topologies (
		chip_id    TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_project_id ON sessions(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state)`,
	`CREATE INDEX IF NOT EXISTS idx_task_instances_execution_id ON task_instances(execution_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_instances_task_target ON task_instances(task_name, target)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
