// Package quest tracks task-to-completion bookkeeping. Quest records are
// append-and-update only; an agent exiting never cascades into its quests.
package quest

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentden/agentden/internal/api"
	"github.com/agentden/agentden/internal/db"
	"github.com/agentden/agentden/internal/model"
)

const defaultXPReward = 100

const revisionPrefix = "Revision requested: "

// AgentControl is the slice of the supervisor the ledger needs: XP awards
// and revision-note forwarding to agents that are still registered.
type AgentControl interface {
	IsRegistered(id string) bool
	AwardXP(id string, amount int) error
	SendInput(id, text string) error
}

type Ledger struct {
	store  *db.Store
	agents AgentControl
	sink   model.Sink
	log    *zap.Logger
}

func NewLedger(store *db.Store, agents AgentControl, sink model.Sink, log *zap.Logger) *Ledger {
	return &Ledger{store: store, agents: agents, sink: sink, log: log}
}

// StartQuest creates an active quest for the agent with the default reward.
func (l *Ledger) StartQuest(ctx context.Context, agentID, description string) (model.Quest, error) {
	now := time.Now().UTC()
	q := model.Quest{
		QuestID:     uuid.NewString(),
		AgentID:     agentID,
		Title:       questTitle(description),
		Description: description,
		Status:      model.QuestActive,
		XPReward:    defaultXPReward,
		StartedAt:   now,
	}
	if err := l.store.InsertQuest(ctx, q); err != nil {
		return model.Quest{}, fmt.Errorf("start quest: %w", err)
	}
	l.sink.Publish(model.Event{
		Type:    model.EventQuestStarted,
		Payload: api.QuestEvent{Quest: api.SnapshotFromQuest(q)},
		At:      now,
	})
	l.log.Info("quest started", zap.String("quest_id", q.QuestID), zap.String("agent_id", agentID))
	return q, nil
}

// Review accepts or revises a quest. Accepting awards the XP reward to the
// owning agent; revising forwards the note back to the agent when it is
// still registered. XP never decreases here.
func (l *Ledger) Review(ctx context.Context, questID string, action model.ReviewAction, note string) error {
	q, err := l.store.GetQuest(ctx, questID)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", model.ErrQuestNotFound, questID)
	}
	if err != nil {
		return fmt.Errorf("review quest: %w", err)
	}

	now := time.Now().UTC()
	switch action {
	case model.ReviewAccept:
		q.Status = model.QuestAccepted
		q.CompletedAt = &now
		if err := l.store.UpdateQuestStatus(ctx, questID, q.Status, q.CompletedAt); err != nil {
			return fmt.Errorf("review quest: %w", err)
		}
		if l.agents.IsRegistered(q.AgentID) {
			if err := l.agents.AwardXP(q.AgentID, q.XPReward); err != nil {
				l.log.Warn("award xp", zap.String("agent_id", q.AgentID), zap.Error(err))
			}
		}
		l.sink.Publish(model.Event{
			Type:    model.EventQuestAccepted,
			Payload: api.QuestEvent{Quest: api.SnapshotFromQuest(q)},
			At:      now,
		})
	case model.ReviewRevise:
		q.Status = model.QuestRevision
		if err := l.store.UpdateQuestStatus(ctx, questID, q.Status, nil); err != nil {
			return fmt.Errorf("review quest: %w", err)
		}
		if l.agents.IsRegistered(q.AgentID) {
			if err := l.agents.SendInput(q.AgentID, revisionPrefix+note); err != nil {
				l.log.Warn("forward revision note", zap.String("agent_id", q.AgentID), zap.Error(err))
			}
		}
		l.sink.Publish(model.Event{
			Type:    model.EventQuestRevision,
			Payload: api.QuestRevisionEvent{Quest: api.SnapshotFromQuest(q), Note: note},
			At:      now,
		})
	default:
		return fmt.Errorf("unknown review action %q", action)
	}
	return nil
}

// questTitle derives a short title from the task description, truncating
// on a rune boundary so multi-byte text stays valid UTF-8.
func questTitle(description string) string {
	const maxTitle = 60
	if utf8.RuneCountInString(description) <= maxTitle {
		return description
	}
	runes := []rune(description)
	return string(runes[:maxTitle-1]) + "…"
}
