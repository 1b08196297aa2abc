package db

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS quests (
	quest_id     TEXT PRIMARY KEY,
	agent_id     TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL,
	status       TEXT NOT NULL,
	artifacts    TEXT NOT NULL DEFAULT '[]',
	xp_reward    INTEGER NOT NULL,
	started_at   TEXT NOT NULL,
	completed_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_quests_agent ON quests(agent_id)`,
	`CREATE TABLE IF NOT EXISTS journal (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload    TEXT NOT NULL,
	emitted_at TEXT NOT NULL
)`,
}

func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
