package model

import (
	"errors"
	"time"
)

// Status is the agent's lifecycle state as inferred from its output.
type Status string

const (
	StatusSpawning   Status = "spawning"
	StatusDormant    Status = "dormant"
	StatusChanneling Status = "channeling"
	StatusAwaiting   Status = "awaiting"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Activity is the kind of work the agent appears to be doing right now.
type Activity string

const (
	ActivityIdle      Activity = "idle"
	ActivityThinking  Activity = "thinking"
	ActivityWriting   Activity = "writing"
	ActivityReading   Activity = "reading"
	ActivityBuilding  Activity = "building"
	ActivityTesting   Activity = "testing"
	ActivitySearching Activity = "searching"
)

// ThoughtKind distinguishes reasoning text from marked action lines.
type ThoughtKind string

const (
	ThoughtThinking ThoughtKind = "thinking"
	ThoughtAction   ThoughtKind = "action"
)

// Thought is an extracted reasoning or action fragment.
type Thought struct {
	Kind    ThoughtKind
	Content string
}

// Question is an extracted prompt awaiting a user decision.
type Question struct {
	Question     string
	QuickReplies []string
}

// Agent is one registered PTY-backed assistant session. The supervisor is
// the only writer of Status, Activity and OutputBuffer.
type Agent struct {
	ID               string
	Name             string
	Class            string
	WorkingDirectory string
	Status           Status
	Activity         Activity
	ContextUsed      int
	Level            int
	XP               int
	GitBranch        string
	CreatedAt        time.Time
	LastActivityAt   time.Time
	OutputBuffer     string
	CurrentThought   string
	CurrentQuestion  string
	QuickReplies     []string
}

type QuestStatus string

const (
	QuestActive   QuestStatus = "active"
	QuestComplete QuestStatus = "complete"
	QuestAccepted QuestStatus = "accepted"
	QuestRevision QuestStatus = "revision"
)

// Quest is one assigned task tracked from start to review. Quests are a
// historical record and are never deleted; AgentID is a weak reference.
type Quest struct {
	QuestID     string
	AgentID     string
	Title       string
	Description string
	Status      QuestStatus
	Artifacts   []string
	XPReward    int
	StartedAt   time.Time
	CompletedAt *time.Time
}

type ReviewAction string

const (
	ReviewAccept ReviewAction = "accept"
	ReviewRevise ReviewAction = "revise"
)

// Event type names broadcast to all gateway clients.
const (
	EventAgentSpawned   = "agent_spawned"
	EventAgentOutput    = "agent_output"
	EventActivityChange = "agent_activity_change"
	EventStatusChange   = "agent_status_change"
	EventAgentThought   = "agent_thought"
	EventAgentQuestion  = "agent_question"
	EventAgentUpdate    = "agent_update"
	EventAgentKilled    = "agent_killed"
	EventQuestStarted   = "quest_started"
	EventQuestAccepted  = "quest_accepted"
	EventQuestRevision  = "quest_revision"
	EventAgentLevelUp   = "agent_level_up"
)

// Event is one notification fanned out to every connected observer.
type Event struct {
	Type    string
	Payload any
	At      time.Time
}

// Sink receives supervisor and ledger events for broadcast.
type Sink interface {
	Publish(ev Event)
}

// Error codes defined by the gateway contract.
const (
	ErrCodeDirNotFound   = "E_DIR_NOT_FOUND"
	ErrCodeAgentNotFound = "E_AGENT_NOT_FOUND"
	ErrCodeQuestNotFound = "E_QUEST_NOT_FOUND"
	ErrCodeAuthFailed    = "E_AUTH_FAILED"
	ErrCodeBadRequest    = "E_BAD_REQUEST"
)

var (
	ErrDirectoryNotFound    = errors.New("working directory not found")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrQuestNotFound        = errors.New("quest not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// LevelForXP derives the level from accumulated XP. Level is never stored
// independently of this recompute.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/500 + 1
}
