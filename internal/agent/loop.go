package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/heartbeat"
	"github.com/ferroclaw/ferroclaw/internal/memory"
	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/session"
	"github.com/ferroclaw/ferroclaw/internal/skills"
	"github.com/ferroclaw/ferroclaw/internal/tasklog"
	"github.com/ferroclaw/ferroclaw/internal/tools"
	"github.com/ferroclaw/ferroclaw/internal/trace"
)

// historyWindow bounds how much session history is replayed into a turn.
const historyWindow = 50

// Loop is the single consumer of the inbound queue. It classifies
// messages, runs one turn per message, persists the session and
// publishes the response.
type Loop struct {
	bus       *bus.MessageBus
	provider  provider.LLMProvider
	sessions  *session.Manager
	registry  *tools.Registry
	builder   *ContextBuilder
	engine    *Engine
	subagents *SubagentManager
	trace     *trace.Publisher

	running atomic.Bool
	logger  *slog.Logger
}

// Options configures a Loop.
type Options struct {
	Bus       *bus.MessageBus
	Provider  provider.LLMProvider
	Sessions  *session.Manager
	Model     string
	Workspace string
	// MaxIterations overrides the turn ceiling when positive.
	MaxIterations int
	// MaxTokens and Temperature override the request sampling knobs
	// when positive.
	MaxTokens   int
	Temperature float64
	// TaskLog records subagent runs when set.
	TaskLog *tasklog.Store
	// Trace publishes runtime events when set.
	Trace *trace.Publisher
}

// NewLoop wires the default tool set, context builder, engine and
// subagent manager around the bus.
func NewLoop(opts Options) *Loop {
	registry := tools.NewRegistry()
	workspace := func() string { return opts.Workspace }

	registry.Register(tools.NewReadFileTool())
	registry.Register(tools.NewWriteFileTool(workspace))
	registry.Register(tools.NewEditFileTool(workspace))
	registry.Register(tools.NewListDirTool())
	registry.Register(tools.NewExecTool(0, true, opts.Workspace))
	registry.Register(tools.NewWebSearchTool())
	registry.Register(tools.NewWebFetchTool())
	registry.Register(tools.NewMessageTool(opts.Bus))

	subagents := NewSubagentManager(opts.Bus, opts.Provider, opts.Model, opts.Workspace)
	subagents.SetSampling(opts.MaxTokens, opts.Temperature)
	if opts.TaskLog != nil {
		subagents.SetTaskLog(opts.TaskLog)
	}
	registry.Register(tools.NewSpawnTool(subagents))
	registry.Register(tools.NewSubagentStatusTool(subagents))

	tracer := opts.Trace
	if tracer == nil {
		tracer = trace.NewPublisher(nil, "")
	}
	subagents.SetTrace(tracer)

	mem := memory.NewStore(opts.Workspace)
	skillLoader := skills.NewLoader(opts.Workspace)
	builder := NewContextBuilder(opts.Workspace, registry, mem, skillLoader)
	engine := NewEngine(opts.Provider, registry, opts.Model, opts.MaxIterations, "")
	engine.SetSampling(opts.MaxTokens, opts.Temperature)

	return &Loop{
		bus:       opts.Bus,
		provider:  opts.Provider,
		sessions:  opts.Sessions,
		registry:  registry,
		builder:   builder,
		engine:    engine,
		subagents: subagents,
		trace:     tracer,
		logger:    slog.Default().With("component", "loop"),
	}
}

// Registry exposes the loop's tool registry.
func (l *Loop) Registry() *tools.Registry { return l.registry }

// Subagents exposes the subagent manager.
func (l *Loop) Subagents() *SubagentManager { return l.subagents }

// Run consumes inbound messages until the context is cancelled or Stop
// is called.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	l.logger.Info("agent loop started")

	for l.running.Load() {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("agent loop stopped", "reason", "context cancelled")
				return nil
			}
			return fmt.Errorf("consume inbound: %w", err)
		}
		l.processMessage(ctx, msg)
	}

	l.logger.Info("agent loop stopped")
	return nil
}

// Stop makes Run return after the in-flight message.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// ProcessDirect runs one turn outside the bus, for CLI usage. The
// conversation lives in the cli:direct session.
func (l *Loop) ProcessDirect(ctx context.Context, content string) (string, error) {
	msg := &bus.InboundMessage{
		Channel:   "cli",
		SenderID:  "user",
		ChatID:    "direct",
		Content:   content,
		Timestamp: time.Now(),
	}
	return l.runTurn(ctx, msg, tools.Route{Channel: "cli", ChatID: "direct"}, msg.SessionKey())
}

// processMessage classifies a message, runs the turn and publishes the
// response. System messages reply to their parsed origin and share the
// origin chat's session.
func (l *Loop) processMessage(ctx context.Context, msg *bus.InboundMessage) {
	route := tools.Route{Channel: msg.Channel, ChatID: msg.ChatID}
	sessionKey := msg.SessionKey()

	if msg.Channel == bus.SystemChannel {
		origin := msg.ParseOrigin()
		route = tools.Route{Channel: origin.Channel, ChatID: origin.ChatID}
		sessionKey = origin.Channel + ":" + origin.ChatID
	}

	l.logger.Info("processing message", "channel", msg.Channel, "session", sessionKey)

	response, err := l.runTurn(ctx, msg, route, sessionKey)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("turn failed", "session", sessionKey, "error", err)
		l.trace.Emit(ctx, trace.Event{
			Type:    trace.EventTurnFailed,
			Session: sessionKey,
			Channel: msg.Channel,
			Detail:  map[string]any{"error": err.Error()},
		})
		response = fmt.Sprintf("Sorry, I ran into an error processing that: %v", err)
	} else {
		l.trace.Emit(ctx, trace.Event{
			Type:    trace.EventTurnCompleted,
			Session: sessionKey,
			Channel: msg.Channel,
		})
	}

	if response == "" {
		return
	}
	if msg.Channel == bus.SystemChannel && strings.Contains(response, heartbeat.OKToken) {
		l.logger.Debug("suppressing heartbeat ok response", "session", sessionKey)
		return
	}
	l.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: route.Channel,
		ChatID:  route.ChatID,
		Content: response,
	})
}

// runTurn builds the context, executes the engine and appends exactly
// one user and one assistant entry to the session.
func (l *Loop) runTurn(ctx context.Context, msg *bus.InboundMessage, route tools.Route, sessionKey string) (string, error) {
	sess := l.sessions.GetOrCreate(sessionKey)
	history := sess.GetHistory(historyWindow)

	messages := l.builder.BuildMessages(history, msg.Content, msg.Media, route)

	turnCtx := tools.WithRoute(ctx, route)
	response, err := l.engine.Run(turnCtx, messages)
	if err != nil {
		return "", err
	}

	// Synthetic traffic is marked in the stored history so a replay can
	// tell it apart from the human.
	entry := msg.Content
	if msg.Channel == bus.SystemChannel {
		entry = fmt.Sprintf("[System: %s] %s", msg.SenderID, msg.Content)
	}
	sess.AddMessage("user", entry)
	sess.AddMessage("assistant", response)
	if err := l.sessions.Save(sess); err != nil {
		l.logger.Error("session save failed", "session", sessionKey, "error", err)
	}

	return response, nil
}
