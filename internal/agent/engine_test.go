package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/tools"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	responses []*provider.ChatResponse
	err       error
	requests  []*provider.ChatRequest
}

func (p *scriptedProvider) DefaultModel() string { return "scripted" }

func (p *scriptedProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	idx := len(p.requests) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func textResponse(content string) *provider.ChatResponse {
	return &provider.ChatResponse{Content: content, FinishReason: "stop"}
}

func toolResponse(calls ...provider.ToolCall) *provider.ChatResponse {
	return &provider.ChatResponse{ToolCalls: calls, FinishReason: "tool_calls"}
}

// recordingTool remembers the order it was called in.
type recordingTool struct {
	name  string
	calls *[]string
}

func (t *recordingTool) Name() string        { return t.name }
func (t *recordingTool) Description() string { return "records calls" }
func (t *recordingTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *recordingTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	*t.calls = append(*t.calls, t.name)
	return "result from " + t.name, nil
}

func TestEngineSamplingDefaults(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("ok")}}
	engine := NewEngine(p, tools.NewRegistry(), "m", 0, "")

	if _, err := engine.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	req := p.requests[0]
	if req.MaxTokens != defaultMaxTokens || req.Temperature != defaultTemperature {
		t.Errorf("request sampling = %d/%v, want defaults", req.MaxTokens, req.Temperature)
	}
}

func TestEngineSetSamplingReachesRequest(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("ok")}}
	engine := NewEngine(p, tools.NewRegistry(), "m", 0, "")
	engine.SetSampling(2048, 0.2)

	if _, err := engine.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	req := p.requests[0]
	if req.MaxTokens != 2048 {
		t.Errorf("max tokens = %d, want 2048", req.MaxTokens)
	}
	if req.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", req.Temperature)
	}
}

func TestRunPlainResponse(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{textResponse("hello")}}
	engine := NewEngine(p, tools.NewRegistry(), "m", 0, "")

	out, err := engine.Run(context.Background(), []provider.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "hello" {
		t.Errorf("out = %q", out)
	}
	if len(p.requests) != 1 {
		t.Errorf("provider called %d times", len(p.requests))
	}
}

func TestRunExecutesToolsInOfferedOrder(t *testing.T) {
	var order []string
	registry := tools.NewRegistry()
	registry.Register(&recordingTool{name: "alpha", calls: &order})
	registry.Register(&recordingTool{name: "beta", calls: &order})

	p := &scriptedProvider{responses: []*provider.ChatResponse{
		toolResponse(
			provider.ToolCall{ID: "c1", Name: "beta", Arguments: map[string]any{}},
			provider.ToolCall{ID: "c2", Name: "alpha", Arguments: map[string]any{}},
		),
		textResponse("done"),
	}}
	engine := NewEngine(p, registry, "m", 0, "")

	out, err := engine.Run(context.Background(), []provider.Message{{Role: "user", Content: "go"}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "done" {
		t.Errorf("out = %q", out)
	}
	if len(order) != 2 || order[0] != "beta" || order[1] != "alpha" {
		t.Errorf("tool order = %v", order)
	}

	// Second request must contain the assistant tool calls and both
	// results correlated by id.
	second := p.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "c2" || last.Content != "result from alpha" {
		t.Errorf("last tool message = %+v", last)
	}
	prev := second[len(second)-2]
	if prev.Role != "tool" || prev.ToolCallID != "c1" || prev.Content != "result from beta" {
		t.Errorf("first tool message = %+v", prev)
	}
}

func TestRunFallbackOnIterationCeiling(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{
		toolResponse(provider.ToolCall{ID: "c", Name: "missing", Arguments: map[string]any{}}),
	}}
	engine := NewEngine(p, tools.NewRegistry(), "m", 3, "gave up")

	out, err := engine.Run(context.Background(), []provider.Message{{Role: "user", Content: "loop"}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "gave up" {
		t.Errorf("out = %q", out)
	}
	if len(p.requests) != 3 {
		t.Errorf("provider called %d times, want 3", len(p.requests))
	}
}

func TestRunProviderErrorBecomesText(t *testing.T) {
	p := &scriptedProvider{err: errors.New("rate limited")}
	engine := NewEngine(p, tools.NewRegistry(), "m", 0, "")

	out, err := engine.Run(context.Background(), []provider.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "Error: rate limited" {
		t.Errorf("out = %q", out)
	}
}

func TestRunUnknownToolStillCompletes(t *testing.T) {
	p := &scriptedProvider{responses: []*provider.ChatResponse{
		toolResponse(provider.ToolCall{ID: "c1", Name: "nope", Arguments: map[string]any{}}),
		textResponse("recovered"),
	}}
	engine := NewEngine(p, tools.NewRegistry(), "m", 0, "")

	out, err := engine.Run(context.Background(), []provider.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "recovered" {
		t.Errorf("out = %q", out)
	}

	second := p.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.Content != fmt.Sprintf("Error: tool not found: %s", "nope") {
		t.Errorf("tool result = %+v", last)
	}
}
