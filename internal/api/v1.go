// Package api defines the wire types exchanged with gateway clients.
// Timestamps serialize as RFC 3339 strings.
package api

import (
	"encoding/json"
	"time"

	"github.com/agentden/agentden/internal/model"
)

const SchemaVersion = "v1"

// Command is one inbound client frame. Payload shape depends on Cmd.
type Command struct {
	ID      string          `json:"id"`
	Cmd     string          `json:"cmd"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	CmdAuthenticate      = "authenticate"
	CmdSpawn             = "spawn"
	CmdSendInput         = "send_input"
	CmdKill              = "kill"
	CmdResize            = "resize"
	CmdListAgents        = "list_agents"
	CmdReviewQuest       = "review_quest"
	CmdGetConnectionCode = "get_connection_code"
	CmdGetMachineInfo    = "get_machine_info"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response answers exactly one Command, to the originating client only.
type Response struct {
	SchemaVersion string    `json:"schema_version"`
	ID            string    `json:"id"`
	OK            bool      `json:"ok"`
	Result        any       `json:"result,omitempty"`
	Error         *APIError `json:"error,omitempty"`
}

// Notification is broadcast to every connected client.
type Notification struct {
	SchemaVersion string `json:"schema_version"`
	Event         string `json:"event"`
	Payload       any    `json:"payload"`
	EmittedAt     string `json:"emitted_at"`
}

type AuthenticateRequest struct {
	Code string `json:"code,omitempty"`
}

type SpawnRequest struct {
	Name             string `json:"name"`
	Class            string `json:"class"`
	WorkingDirectory string `json:"workingDirectory"`
	InitialTask      string `json:"initialTask,omitempty"`
}

type SendInputRequest struct {
	AgentID string `json:"agentId"`
	Text    string `json:"text"`
}

type KillRequest struct {
	AgentID string `json:"agentId"`
}

type ResizeRequest struct {
	AgentID string `json:"agentId"`
	Cols    int    `json:"cols"`
	Rows    int    `json:"rows"`
}

type ReviewQuestRequest struct {
	QuestID string `json:"questId"`
	Action  string `json:"action"`
	Note    string `json:"note,omitempty"`
}

type ConnectionCodeResponse struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
	URL       string `json:"url"`
}

type MachineInfo struct {
	Hostname   string   `json:"hostname"`
	Platform   string   `json:"platform"`
	Username   string   `json:"username"`
	Workspaces []string `json:"workspaces"`
}

// AgentSnapshot is the serialized agent view. It deliberately excludes the
// process handle and the raw output buffer.
type AgentSnapshot struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Class            string   `json:"agentClass"`
	WorkingDirectory string   `json:"workingDirectory"`
	Status           string   `json:"status"`
	Activity         string   `json:"activity"`
	ContextUsed      int      `json:"contextUsed"`
	Level            int      `json:"level"`
	XP               int      `json:"xp"`
	GitBranch        string   `json:"gitBranch,omitempty"`
	CreatedAt        string   `json:"createdAt"`
	LastActivityAt   string   `json:"lastActivityAt"`
	CurrentThought   string   `json:"currentThought,omitempty"`
	CurrentQuestion  string   `json:"currentQuestion,omitempty"`
	QuickReplies     []string `json:"quickReplies,omitempty"`
}

type QuestSnapshot struct {
	ID          string   `json:"id"`
	AgentID     string   `json:"agentId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Artifacts   []string `json:"artifacts"`
	XPReward    int      `json:"xpReward"`
	StartedAt   string   `json:"startedAt"`
	CompletedAt string   `json:"completedAt,omitempty"`
}

// Notification payloads.

type AgentOutputEvent struct {
	AgentID   string `json:"agentId"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
}

type ActivityChangeEvent struct {
	AgentID        string `json:"agentId"`
	Activity       string `json:"activity"`
	LastActivityAt string `json:"lastActivityAt"`
}

type StatusChangeEvent struct {
	AgentID        string `json:"agentId"`
	Status         string `json:"status"`
	Activity       string `json:"activity"`
	LastActivityAt string `json:"lastActivityAt"`
}

type ThoughtEvent struct {
	AgentID   string `json:"agentId"`
	Thought   string `json:"thought"`
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp"`
}

type QuestionEvent struct {
	AgentID      string   `json:"agentId"`
	Question     string   `json:"question"`
	QuickReplies []string `json:"quickReplies"`
}

type AgentUpdateEvent struct {
	AgentID        string `json:"agentId"`
	ContextUsed    *int   `json:"contextUsed,omitempty"`
	XP             *int   `json:"xp,omitempty"`
	Level          *int   `json:"level,omitempty"`
	LastActivityAt string `json:"lastActivityAt"`
}

type AgentKilledEvent struct {
	AgentID  string `json:"agentId"`
	ExitCode int    `json:"exitCode"`
}

type QuestEvent struct {
	Quest QuestSnapshot `json:"quest"`
}

type QuestRevisionEvent struct {
	Quest QuestSnapshot `json:"quest"`
	Note  string        `json:"note"`
}

type LevelUpEvent struct {
	AgentID string `json:"agentId"`
	Level   int    `json:"level"`
}

func TS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func SnapshotFromAgent(a model.Agent) AgentSnapshot {
	return AgentSnapshot{
		ID:               a.ID,
		Name:             a.Name,
		Class:            a.Class,
		WorkingDirectory: a.WorkingDirectory,
		Status:           string(a.Status),
		Activity:         string(a.Activity),
		ContextUsed:      a.ContextUsed,
		Level:            a.Level,
		XP:               a.XP,
		GitBranch:        a.GitBranch,
		CreatedAt:        TS(a.CreatedAt),
		LastActivityAt:   TS(a.LastActivityAt),
		CurrentThought:   a.CurrentThought,
		CurrentQuestion:  a.CurrentQuestion,
		QuickReplies:     append([]string(nil), a.QuickReplies...),
	}
}

func SnapshotFromQuest(q model.Quest) QuestSnapshot {
	snap := QuestSnapshot{
		ID:          q.QuestID,
		AgentID:     q.AgentID,
		Title:       q.Title,
		Description: q.Description,
		Status:      string(q.Status),
		Artifacts:   append([]string(nil), q.Artifacts...),
		XPReward:    q.XPReward,
		StartedAt:   TS(q.StartedAt),
	}
	if q.CompletedAt != nil {
		snap.CompletedAt = TS(*q.CompletedAt)
	}
	return snap
}
