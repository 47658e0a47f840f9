package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/tasklog"
	"github.com/ferroclaw/ferroclaw/internal/tools"
	"github.com/ferroclaw/ferroclaw/internal/trace"
)

// RunningTask describes one in-flight background task.
type RunningTask struct {
	ID        string
	Label     string
	Task      string
	Origin    tools.Route
	StartedAt time.Time
	cancel    context.CancelFunc
}

// SubagentManager spawns detached background turns and announces their
// results back through the bus as system messages.
type SubagentManager struct {
	bus       *bus.MessageBus
	provider  provider.LLMProvider
	model     string
	workspace string

	maxTokens   int
	temperature float64

	mu      sync.Mutex
	running map[string]*RunningTask
	wg      sync.WaitGroup
	tasks   *tasklog.Store
	trace   trace.Emitter
	logger  *slog.Logger
}

// NewSubagentManager creates a subagent manager.
func NewSubagentManager(b *bus.MessageBus, p provider.LLMProvider, model, workspace string) *SubagentManager {
	return &SubagentManager{
		bus:       b,
		provider:  p,
		model:     model,
		workspace: workspace,
		running:   make(map[string]*RunningTask),
		logger:    slog.Default().With("component", "subagents"),
	}
}

// SetTaskLog enables persistent task recording. Safe to leave unset.
func (m *SubagentManager) SetTaskLog(store *tasklog.Store) {
	m.tasks = store
}

// SetSampling overrides the sampling knobs of subagent turns.
// Non-positive values keep the engine defaults.
func (m *SubagentManager) SetSampling(maxTokens int, temperature float64) {
	m.maxTokens = maxTokens
	m.temperature = temperature
}

// SetTrace enables lifecycle event publishing. Safe to leave unset.
func (m *SubagentManager) SetTrace(emitter trace.Emitter) {
	m.trace = emitter
}

// Spawn starts a background task and returns its id immediately. The
// result is published to the bus as a system message addressed at the
// origin chat when the task completes.
func (m *SubagentManager) Spawn(task, label string, origin tools.Route) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", fmt.Errorf("subagent task must not be empty")
	}

	taskID := uuid.NewString()[:8]
	ctx, cancel := context.WithCancel(context.Background())

	run := &RunningTask{
		ID:        taskID,
		Label:     displayLabel(label, task),
		Task:      task,
		Origin:    origin,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	m.mu.Lock()
	m.running[taskID] = run
	m.mu.Unlock()

	m.logger.Info("subagent spawned", "task_id", taskID, "label", run.Label)

	if m.trace != nil {
		m.trace.Emit(ctx, trace.Event{
			Type:    trace.EventSubagentSpawned,
			Channel: origin.Channel,
			Detail:  map[string]any{"task_id": taskID, "label": run.Label},
		})
	}

	if m.tasks != nil {
		if _, _, err := m.tasks.Record(taskID, "", "subagent", task); err != nil {
			m.logger.Warn("task record failed", "task_id", taskID, "error", err)
		}
	}

	m.wg.Add(1)
	go m.runTask(ctx, run)

	return taskID, nil
}

// RunningCount returns the number of in-flight tasks.
func (m *SubagentManager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Running returns a snapshot of the in-flight tasks sorted by start time.
func (m *SubagentManager) Running() []RunningTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunningTask, 0, len(m.running))
	for _, run := range m.running {
		copied := *run
		copied.cancel = nil
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// StopAll cancels every running task and waits for the goroutines.
func (m *SubagentManager) StopAll() {
	m.mu.Lock()
	for _, run := range m.running {
		run.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *SubagentManager) runTask(ctx context.Context, run *RunningTask) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.running, run.ID)
		m.mu.Unlock()
	}()

	status := "ok"
	var result string

	if m.tasks != nil {
		_ = m.tasks.SetStatus(run.ID, tasklog.StatusProcessing, "")
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				status = "error"
				result = fmt.Sprintf("subagent panicked: %v", r)
				m.logger.Error("subagent panic", "task_id", run.ID, "panic", r)
			}
		}()

		engine := NewEngine(m.provider, m.subagentRegistry(), m.model, SubagentMaxIterations, subagentFallback)
		engine.SetSampling(m.maxTokens, m.temperature)
		messages := []provider.Message{
			{Role: "system", Content: m.subagentPrompt(run)},
			{Role: "user", Content: run.Task},
		}

		out, err := engine.Run(ctx, messages)
		if err != nil {
			status = "error"
			result = err.Error()
			return
		}
		result = out
	}()

	if m.tasks != nil {
		final := tasklog.StatusCompleted
		if status == "error" {
			final = tasklog.StatusFailed
		}
		_ = m.tasks.SetStatus(run.ID, final, result)
	}

	if m.trace != nil {
		// The task context may already be cancelled; the event still
		// needs to go out.
		m.trace.Emit(context.Background(), trace.Event{
			Type:    trace.EventSubagentFinished,
			Channel: run.Origin.Channel,
			Detail:  map[string]any{"task_id": run.ID, "status": status},
		})
	}

	m.announce(run, status, result)
	m.logger.Info("subagent finished", "task_id", run.ID, "status", status)
}

// subagentRegistry builds a fresh restricted tool set. Subagents get
// workspace and web tools but cannot message users or spawn further
// subagents.
func (m *SubagentManager) subagentRegistry() *tools.Registry {
	registry := tools.NewRegistry()
	workspace := func() string { return m.workspace }
	registry.Register(tools.NewReadFileTool())
	registry.Register(tools.NewWriteFileTool(workspace))
	registry.Register(tools.NewEditFileTool(workspace))
	registry.Register(tools.NewListDirTool())
	registry.Register(tools.NewExecTool(0, true, m.workspace))
	registry.Register(tools.NewWebSearchTool())
	registry.Register(tools.NewWebFetchTool())
	return registry
}

func (m *SubagentManager) subagentPrompt(run *RunningTask) string {
	return fmt.Sprintf(`You are a background subagent working on one task.

## Task
%s

## Rules
- Work on the task and nothing else.
- You cannot message users or spawn further subagents.
- Your final text response is the task result and will be reported back.

## Workspace
%s`, run.Task, m.workspace)
}

// announce publishes the task outcome as a system message. The origin
// chat is carried both as typed origin and in the chat_id encoding so
// the loop can route the follow-up response.
func (m *SubagentManager) announce(run *RunningTask, status, result string) {
	if strings.TrimSpace(result) == "" {
		result = "(no output)"
	}

	content := fmt.Sprintf(`[Background task '%s' finished]
Status: %s
Task: %s
Result:
%s

Summarize this outcome for the user in one or two sentences. Do not mention subagents, task ids or other internals.`,
		run.Label, status, run.Task, result)

	origin := run.Origin
	if origin.Channel == "" {
		origin.Channel = "cli"
	}

	m.bus.PublishInbound(&bus.InboundMessage{
		Channel:   bus.SystemChannel,
		SenderID:  "subagent",
		ChatID:    origin.Channel + ":" + origin.ChatID,
		Origin:    &bus.Origin{Channel: origin.Channel, ChatID: origin.ChatID},
		Content:   content,
		Timestamp: time.Now(),
	})
}

func displayLabel(label, task string) string {
	label = strings.TrimSpace(label)
	if label != "" {
		return label
	}
	if len(task) > 30 {
		return task[:30] + "..."
	}
	return task
}
