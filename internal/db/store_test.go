package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentden/agentden/internal/db"
	"github.com/agentden/agentden/internal/model"
)

func openStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() }) //nolint:errcheck
	return store
}

func TestQuestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	quest := model.Quest{
		QuestID:     "q1",
		AgentID:     "a1",
		Title:       "Fix the flaky watcher test",
		Description: "Fix the flaky watcher test",
		Status:      model.QuestActive,
		XPReward:    100,
		StartedAt:   started,
	}
	if err := store.InsertQuest(ctx, quest); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := store.GetQuest(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.QuestActive || got.AgentID != "a1" || !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected quest: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Fatalf("expected nil completed_at, got %v", got.CompletedAt)
	}
}

func TestUpdateQuestStatus(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	if err := store.InsertQuest(ctx, model.Quest{
		QuestID: "q1", AgentID: "a1", Title: "t", Description: "t",
		Status: model.QuestActive, XPReward: 100, StartedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	completed := time.Now().UTC()
	if err := store.UpdateQuestStatus(ctx, "q1", model.QuestAccepted, &completed); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.GetQuest(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.QuestAccepted || got.CompletedAt == nil {
		t.Fatalf("unexpected quest after update: %+v", got)
	}
}

func TestUpdateMissingQuestIsNotFound(t *testing.T) {
	store := openStore(t)
	err := store.UpdateQuestStatus(context.Background(), "nope", model.QuestAccepted, nil)
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJournalAppend(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	for i := 0; i < 3; i++ {
		if err := store.AppendJournal(ctx, "agent_output", map[string]any{"agentId": "a1"}, time.Now().UTC()); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	n, err := store.CountJournal(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("journal count=%d want=3", n)
	}
}
