// Package db is the sqlite-backed store for quest records and the
// notification journal. Quests are historical records: rows are inserted
// and updated, never deleted.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentden/agentden/internal/model"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path. Use
// ":memory:" in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) InsertQuest(ctx context.Context, q model.Quest) error {
	artifacts, err := json.Marshal(q.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO quests(quest_id, agent_id, title, description, status, artifacts, xp_reward, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.QuestID, q.AgentID, q.Title, q.Description, string(q.Status),
		string(artifacts), q.XPReward, ts(q.StartedAt), tsPtr(q.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert quest: %w", err)
	}
	return nil
}

func (s *Store) GetQuest(ctx context.Context, questID string) (model.Quest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT quest_id, agent_id, title, description, status, artifacts, xp_reward, started_at, completed_at
FROM quests WHERE quest_id = ?`, questID)
	return scanQuest(row)
}

func (s *Store) UpdateQuestStatus(ctx context.Context, questID string, status model.QuestStatus, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quests SET status = ?, completed_at = ? WHERE quest_id = ?`,
		string(status), tsPtr(completedAt), questID)
	if err != nil {
		return fmt.Errorf("update quest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quest: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListQuestsByAgent(ctx context.Context, agentID string) ([]model.Quest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT quest_id, agent_id, title, description, status, artifacts, xp_reward, started_at, completed_at
FROM quests WHERE agent_id = ? ORDER BY started_at`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	var quests []model.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

// AppendJournal records one broadcast notification. Write-only at runtime;
// the journal exists as an audit record, not as replayable state.
func (s *Store) AppendJournal(ctx context.Context, eventType string, payload any, emittedAt time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal journal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO journal(event_type, payload, emitted_at) VALUES (?, ?, ?)`,
		eventType, string(raw), ts(emittedAt))
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

func (s *Store) CountJournal(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuest(row rowScanner) (model.Quest, error) {
	var (
		q           model.Quest
		status      string
		artifacts   string
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&q.QuestID, &q.AgentID, &q.Title, &q.Description, &status,
		&artifacts, &q.XPReward, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quest{}, ErrNotFound
	}
	if err != nil {
		return model.Quest{}, fmt.Errorf("scan quest: %w", err)
	}
	q.Status = model.QuestStatus(status)
	if err := json.Unmarshal([]byte(artifacts), &q.Artifacts); err != nil {
		return model.Quest{}, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	if q.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.Quest{}, fmt.Errorf("parse started_at: %w", err)
	}
	if completedAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return model.Quest{}, fmt.Errorf("parse completed_at: %w", err)
		}
		q.CompletedAt = &at
	}
	return q, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}
