package db

import (
	"context"
	"fmt"
	"strings"
)

// schema is shared by both dialects. {{pk}} expands to the auto-increment
// primary key column type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          {{pk}},
		owner_id    BIGINT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'In Progress',
		priority    INTEGER NOT NULL DEFAULT 2,
		color       TEXT NOT NULL DEFAULT '#808080',
		created_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id               {{pk}},
		owner_id         BIGINT NOT NULL,
		project_id       BIGINT REFERENCES projects(id) ON DELETE CASCADE,
		title            TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL DEFAULT 60,
		status           TEXT NOT NULL DEFAULT 'NotStarted',
		priority         INTEGER NOT NULL DEFAULT 2,
		scheduled_start  TEXT,
		scheduled_end    TEXT,
		started_at       TEXT,
		completed_at     TEXT,
		created_at       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id         BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		prerequisite_id BIGINT NOT NULL,
		PRIMARY KEY (task_id, prerequisite_id)
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_events (
		id          {{pk}},
		owner_id    BIGINT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time  TEXT NOT NULL,
		end_time    TEXT NOT NULL,
		project_id  BIGINT REFERENCES projects(id) ON DELETE SET NULL,
		task_id     BIGINT REFERENCES tasks(id) ON DELETE SET NULL,
		event_type  TEXT NOT NULL DEFAULT 'event'
	)`,

	`CREATE TABLE IF NOT EXISTS status_updates (
		id         {{pk}},
		task_id    BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		status     TEXT NOT NULL,
		notes      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS analytics_events (
		id               {{pk}},
		event_name       TEXT NOT NULL,
		event_time       TEXT NOT NULL,
		user_id          BIGINT NOT NULL,
		session_id       TEXT,
		platform         TEXT NOT NULL DEFAULT 'unknown',
		app_version      TEXT NOT NULL DEFAULT '',
		device_locale    TEXT,
		source_event_key TEXT UNIQUE,
		properties       TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_task_dependencies_prereq ON task_dependencies(prerequisite_id)`,
	`CREATE INDEX IF NOT EXISTS idx_calendar_owner_range ON calendar_events(owner_id, start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_status_updates_task ON status_updates(task_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_analytics_events_user ON analytics_events(user_id, event_name)`,
}

// Migrate creates all tables and indexes. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	pk := "BIGSERIAL PRIMARY KEY"
	if d.Driver == SQLite {
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	for _, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, "{{pk}}", pk)
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
