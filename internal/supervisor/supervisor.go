// Package supervisor owns the registry of live agent processes. It is the
// only writer of agent status, activity and output state. Output chunks
// flow through a single-consumer inbox, so mutations for one chunk always
// complete before the next chunk (from any agent) is applied.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentden/agentden/internal/api"
	"github.com/agentden/agentden/internal/classify"
	"github.com/agentden/agentden/internal/config"
	"github.com/agentden/agentden/internal/model"
	"github.com/agentden/agentden/internal/sysexec"
)

// QuestRecorder records the quest created for a spawn-time initial task.
type QuestRecorder interface {
	StartQuest(ctx context.Context, agentID, description string) (model.Quest, error)
}

type agentProc struct {
	agent model.Agent
	proc  procHandle
}

type inboxMsg struct {
	agentID  string
	chunk    string
	exit     bool
	exitCode int
}

type Supervisor struct {
	cfg    config.Config
	log    *zap.Logger
	sink   model.Sink
	exec   *sysexec.Executor
	quests QuestRecorder

	// start is injectable for tests; defaults to startShellProc.
	start startProcFunc

	mu     sync.Mutex
	agents map[string]*agentProc

	inbox chan inboxMsg
	done  chan struct{}
}

func New(cfg config.Config, log *zap.Logger, sink model.Sink, exec *sysexec.Executor) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		log:    log,
		sink:   sink,
		exec:   exec,
		start:  startShellProc,
		agents: map[string]*agentProc{},
		inbox:  make(chan inboxMsg, cfg.InboxSize),
		done:   make(chan struct{}),
	}
}

// SetQuestRecorder wires the ledger in after construction; the ledger also
// needs the supervisor, so one side attaches late.
func (s *Supervisor) SetQuestRecorder(q QuestRecorder) { s.quests = q }

// Start launches the chunk consumer. It returns when ctx is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-s.inbox:
				if msg.exit {
					s.handleExit(msg.agentID, msg.exitCode)
				} else {
					s.handleChunk(msg.agentID, msg.chunk)
				}
			}
		}
	}()
}

// Shutdown kills every live process. Registry removal still happens through
// the exit path while the consumer runs.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.agents {
		if err := a.proc.Kill(); err != nil {
			s.log.Warn("kill on shutdown", zap.String("agent_id", id), zap.Error(err))
		}
	}
}

// Spawn validates the working directory, starts an interactive shell on a
// fresh pseudo-terminal and registers the agent. The CLI invocation is
// written after a settle delay; an initial task is delivered later still,
// once the CLI has had time to start.
func (s *Supervisor) Spawn(ctx context.Context, name, className, workingDirectory, initialTask string) (api.AgentSnapshot, error) {
	dir, err := expandHome(workingDirectory)
	if err != nil {
		return api.AgentSnapshot{}, fmt.Errorf("%w: %s", model.ErrDirectoryNotFound, workingDirectory)
	}
	if st, statErr := os.Stat(dir); statErr != nil || !st.IsDir() {
		return api.AgentSnapshot{}, fmt.Errorf("%w: %s", model.ErrDirectoryNotFound, dir)
	}

	class := ResolveClass(className)
	branch := s.exec.GitBranch(ctx, dir)

	proc, err := s.start(dir)
	if err != nil {
		return api.AgentSnapshot{}, fmt.Errorf("spawn agent shell: %w", err)
	}

	now := time.Now().UTC()
	agent := model.Agent{
		ID:               uuid.NewString(),
		Name:             name,
		Class:            class.Name,
		WorkingDirectory: dir,
		Status:           model.StatusSpawning,
		Activity:         model.ActivityIdle,
		Level:            1,
		GitBranch:        branch,
		CreatedAt:        now,
		LastActivityAt:   now,
	}

	s.mu.Lock()
	s.agents[agent.ID] = &agentProc{agent: agent, proc: proc}
	s.mu.Unlock()

	// Announce the agent before the read pump starts so observers never see
	// output from an agent they have not seen spawn.
	snap := api.SnapshotFromAgent(agent)
	s.emit(model.EventAgentSpawned, snap, now)

	go s.readPump(agent.ID, proc)

	id := agent.ID
	time.AfterFunc(s.cfg.SettleDelay, func() { s.launchCLI(id, class) })
	if initialTask != "" {
		time.AfterFunc(s.cfg.SettleDelay+s.cfg.InitialTaskDelay, func() { s.deliverTask(id, initialTask) })
	}
	s.log.Info("agent spawned",
		zap.String("agent_id", agent.ID),
		zap.String("class", class.Name),
		zap.String("dir", dir))
	return snap, nil
}

// SendInput writes text to the agent's terminal. Answering optimistically
// ends any awaiting state before new output confirms it.
func (s *Supervisor) SendInput(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrAgentNotFound, id)
	}
	if _, err := a.proc.Write([]byte(text + "\r")); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	now := time.Now().UTC()
	a.agent.LastActivityAt = now
	a.agent.CurrentQuestion = ""
	a.agent.QuickReplies = nil
	if a.agent.Status != model.StatusChanneling {
		a.agent.Status = model.StatusChanneling
		s.emit(model.EventStatusChange, api.StatusChangeEvent{
			AgentID:        id,
			Status:         string(a.agent.Status),
			Activity:       string(a.agent.Activity),
			LastActivityAt: api.TS(now),
		}, now)
	}
	return nil
}

// Kill terminates the OS process. The registry entry is removed by the
// exit path, never here, so an explicit kill and a natural exit share one
// cleanup route.
func (s *Supervisor) Kill(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrAgentNotFound, id)
	}
	if err := a.proc.Kill(); err != nil {
		return fmt.Errorf("kill agent: %w", err)
	}
	return nil
}

func (s *Supervisor) Resize(id string, cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrAgentNotFound, id)
	}
	if err := a.proc.Resize(uint16(cols), uint16(rows)); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	return nil
}

// List returns snapshots of all registered agents, oldest first.
func (s *Supervisor) List() []api.AgentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := make([]api.AgentSnapshot, 0, len(s.agents))
	for _, a := range s.agents {
		snaps = append(snaps, api.SnapshotFromAgent(a.agent))
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt != snaps[j].CreatedAt {
			return snaps[i].CreatedAt < snaps[j].CreatedAt
		}
		return snaps[i].ID < snaps[j].ID
	})
	return snaps
}

// IsRegistered reports whether an agent is still live.
func (s *Supervisor) IsRegistered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[id]
	return ok
}

// AwardXP adds XP to a live agent, recomputes its level and emits the
// update; a level-up event fires only when the level actually increased.
func (s *Supervisor) AwardXP(id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrAgentNotFound, id)
	}
	now := time.Now().UTC()
	oldLevel := model.LevelForXP(a.agent.XP)
	a.agent.XP += amount
	a.agent.Level = model.LevelForXP(a.agent.XP)
	a.agent.LastActivityAt = now

	xp, level := a.agent.XP, a.agent.Level
	s.emit(model.EventAgentUpdate, api.AgentUpdateEvent{
		AgentID:        id,
		XP:             &xp,
		Level:          &level,
		LastActivityAt: api.TS(now),
	}, now)
	if level > oldLevel {
		s.emit(model.EventAgentLevelUp, api.LevelUpEvent{AgentID: id, Level: level}, now)
	}
	return nil
}

func (s *Supervisor) launchCLI(id string, class Class) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		// Killed during the settle delay.
		return
	}
	if _, err := a.proc.Write([]byte(class.Invocation() + "\r")); err != nil {
		s.log.Warn("write cli invocation", zap.String("agent_id", id), zap.Error(err))
		return
	}
	if a.agent.Status == model.StatusSpawning {
		now := time.Now().UTC()
		a.agent.Status = model.StatusDormant
		a.agent.LastActivityAt = now
		s.emit(model.EventStatusChange, api.StatusChangeEvent{
			AgentID:        id,
			Status:         string(a.agent.Status),
			Activity:       string(a.agent.Activity),
			LastActivityAt: api.TS(now),
		}, now)
	}
}

func (s *Supervisor) deliverTask(id, task string) {
	s.mu.Lock()
	a, ok := s.agents[id]
	if !ok {
		return
	}
	_, err := a.proc.Write([]byte(task + "\r"))
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("write initial task", zap.String("agent_id", id), zap.Error(err))
		return
	}
	if s.quests == nil {
		return
	}
	if _, err := s.quests.StartQuest(context.Background(), id, task); err != nil {
		s.log.Warn("record initial quest", zap.String("agent_id", id), zap.Error(err))
	}
}

func (s *Supervisor) readPump(id string, proc procHandle) {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, err := proc.Read(buf)
		if n > 0 {
			select {
			case s.inbox <- inboxMsg{agentID: id, chunk: string(buf[:n])}:
			case <-s.done:
				return
			}
		}
		if err != nil {
			break
		}
	}
	code := proc.Wait()
	_ = proc.Close()
	select {
	case s.inbox <- inboxMsg{agentID: id, exit: true, exitCode: code}:
	case <-s.done:
	}
}

// handleChunk applies one output chunk: buffer append, activity and status
// reclassification, thought/question extraction and the context estimate.
// Notifications fire only for fields that changed.
func (s *Supervisor) handleChunk(id, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	a.agent.OutputBuffer += chunk
	a.agent.LastActivityAt = now

	s.emit(model.EventAgentOutput, api.AgentOutputEvent{
		AgentID:   id,
		Chunk:     chunk,
		Timestamp: api.TS(now),
	}, now)

	if activity := classify.Activity(chunk); activity != a.agent.Activity {
		a.agent.Activity = activity
		s.emit(model.EventActivityChange, api.ActivityChangeEvent{
			AgentID:        id,
			Activity:       string(activity),
			LastActivityAt: api.TS(now),
		}, now)
	}

	if status := classify.Status(chunk, a.agent.Status); status != a.agent.Status {
		a.agent.Status = status
		s.emit(model.EventStatusChange, api.StatusChangeEvent{
			AgentID:        id,
			Status:         string(status),
			Activity:       string(a.agent.Activity),
			LastActivityAt: api.TS(now),
		}, now)
	}

	if thought := classify.Thought(chunk); thought != nil {
		a.agent.CurrentThought = thought.Content
		s.emit(model.EventAgentThought, api.ThoughtEvent{
			AgentID:   id,
			Thought:   thought.Content,
			Kind:      string(thought.Kind),
			Timestamp: api.TS(now),
		}, now)
	}

	// Question extraction only applies while the agent is awaiting input;
	// awaiting with no extracted question is a valid state.
	if a.agent.Status == model.StatusAwaiting {
		if q := classify.Question(chunk); q != nil {
			a.agent.CurrentQuestion = q.Question
			a.agent.QuickReplies = append([]string(nil), q.QuickReplies...)
			s.emit(model.EventAgentQuestion, api.QuestionEvent{
				AgentID:      id,
				Question:     q.Question,
				QuickReplies: q.QuickReplies,
			}, now)
		}
	}

	if usage := classify.ContextUsage(a.agent.OutputBuffer); usage != a.agent.ContextUsed {
		a.agent.ContextUsed = usage
		s.emit(model.EventAgentUpdate, api.AgentUpdateEvent{
			AgentID:        id,
			ContextUsed:    &usage,
			LastActivityAt: api.TS(now),
		}, now)
	}
}

// handleExit is the single registry-removal path, for explicit kills and
// natural exits alike.
func (s *Supervisor) handleExit(id string, exitCode int) {
	s.mu.Lock()
	_, ok := s.agents[id]
	if ok {
		delete(s.agents, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	now := time.Now().UTC()
	s.emit(model.EventAgentKilled, api.AgentKilledEvent{AgentID: id, ExitCode: exitCode}, now)
	s.log.Info("agent terminated", zap.String("agent_id", id), zap.Int("exit_code", exitCode))
}

func (s *Supervisor) emit(eventType string, payload any, at time.Time) {
	s.sink.Publish(model.Event{Type: eventType, Payload: payload, At: at})
}

func expandHome(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
