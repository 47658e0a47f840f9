package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/session"
)

func newTestLoop(t *testing.T, p provider.LLMProvider) (*Loop, *bus.MessageBus, *session.Manager) {
	t.Helper()
	b := bus.NewMessageBus()
	sessions := session.NewManager(t.TempDir())
	loop := NewLoop(Options{
		Bus:       b,
		Provider:  p,
		Sessions:  sessions,
		Model:     "test",
		Workspace: t.TempDir(),
	})
	return loop, b, sessions
}

func consumeOutbound(t *testing.T, b *bus.MessageBus) *bus.OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := b.ConsumeOutbound(ctx)
	if err != nil {
		t.Fatalf("no outbound message: %v", err)
	}
	return msg
}

func TestLoopOptionsSamplingReachesProvider(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("ok")}}
	b := bus.NewMessageBus()
	loop := NewLoop(Options{
		Bus:         b,
		Provider:    p,
		Sessions:    session.NewManager(t.TempDir()),
		Model:       "test",
		Workspace:   t.TempDir(),
		MaxTokens:   1024,
		Temperature: 0.1,
	})

	if _, err := loop.ProcessDirect(context.Background(), "hi"); err != nil {
		t.Fatalf("ProcessDirect() error: %v", err)
	}
	req := p.requests[0]
	if req.MaxTokens != 1024 {
		t.Errorf("max tokens = %d, want 1024", req.MaxTokens)
	}
	if req.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", req.Temperature)
	}
}

func TestProcessMessageAppendsOneUserOneAssistant(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("hi back")}}
	loop, b, sessions := newTestLoop(t, p)

	loop.processMessage(context.Background(), &bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "u1",
		ChatID:   "42",
		Content:  "hello",
	})

	out := consumeOutbound(t, b)
	if out.Channel != "telegram" || out.ChatID != "42" || out.Content != "hi back" {
		t.Errorf("outbound = %+v", out)
	}

	sess := sessions.GetOrCreate("telegram:42")
	history := sess.GetHistory(10)
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hello" {
		t.Errorf("user entry = %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "hi back" {
		t.Errorf("assistant entry = %+v", history[1])
	}
}

func TestSystemMessageRoutesToOrigin(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("task done summary")}}
	loop, b, sessions := newTestLoop(t, p)

	loop.processMessage(context.Background(), &bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "subagent",
		ChatID:   "telegram:42",
		Content:  "[Background task 'x' finished]",
	})

	out := consumeOutbound(t, b)
	if out.Channel != "telegram" || out.ChatID != "42" {
		t.Errorf("outbound routed to %s:%s", out.Channel, out.ChatID)
	}

	// The announcement turn shares the origin chat's session and its
	// stored entry is marked as synthetic traffic.
	sess := sessions.GetOrCreate("telegram:42")
	history := sess.GetHistory(10)
	if len(history) != 2 {
		t.Fatalf("origin session has %d entries, want 2", len(history))
	}
	if history[0].Content != "[System: subagent] [Background task 'x' finished]" {
		t.Errorf("stored system entry = %q", history[0].Content)
	}
}

func TestSystemMessageWithoutSeparatorFallsBackToCLI(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("ok")}}
	loop, b, _ := newTestLoop(t, p)

	loop.processMessage(context.Background(), &bus.InboundMessage{
		Channel: bus.SystemChannel,
		ChatID:  "direct",
		Content: "heartbeat",
	})

	out := consumeOutbound(t, b)
	if out.Channel != "cli" || out.ChatID != "direct" {
		t.Errorf("outbound routed to %s:%s", out.Channel, out.ChatID)
	}
}

func TestProviderFailureStillAnswers(t *testing.T) {
	p := &scriptedProvider{err: context.DeadlineExceeded}
	loop, b, _ := newTestLoop(t, p)

	loop.processMessage(context.Background(), &bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Content: "hello",
	})

	out := consumeOutbound(t, b)
	if !strings.HasPrefix(out.Content, "Error:") {
		t.Errorf("content = %q", out.Content)
	}
}

func TestHeartbeatOKResponseSuppressed(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("HEARTBEAT_OK")}}
	loop, b, _ := newTestLoop(t, p)

	loop.processMessage(context.Background(), &bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "heartbeat",
		ChatID:   "cli:heartbeat",
		Content:  "Heartbeat check.",
	})

	if got := b.OutboundSize(); got != 0 {
		t.Errorf("outbound size = %d, want suppressed", got)
	}
}

func TestRunConsumesUntilStopped(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("reply")}}
	loop, b, _ := newTestLoop(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	b.PublishInbound(&bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "hi"})
	out := consumeOutbound(t, b)
	if out.Content != "reply" {
		t.Errorf("content = %q", out.Content)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestProcessDirect(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("direct answer")}}
	loop, _, sessions := newTestLoop(t, p)

	out, err := loop.ProcessDirect(context.Background(), "question")
	if err != nil {
		t.Fatalf("ProcessDirect() error: %v", err)
	}
	if out != "direct answer" {
		t.Errorf("out = %q", out)
	}
	if got := sessions.GetOrCreate("cli:direct").Len(); got != 2 {
		t.Errorf("cli session has %d entries, want 2", got)
	}
}
