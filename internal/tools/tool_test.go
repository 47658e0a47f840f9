package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/ferroclaw/ferroclaw/internal/bus"
)

type echoTool struct {
	params map[string]any
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Echo the input text." }

func (t *echoTool) Parameters() map[string]any {
	if t.params != nil {
		return t.params
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func (t *echoTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	return GetString(params, "text", ""), nil
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	result, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result != "hi" {
		t.Errorf("result = %q", result)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Execute(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistryRejectsInvalidParamsBeforeExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	// Missing required "text" must be rejected by the schema, not the tool.
	result, err := r.Execute(context.Background(), "echo", map[string]any{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(result, "Error: invalid parameters for echo") {
		t.Errorf("result = %q", result)
	}
	if !strings.Contains(result, "text") {
		t.Errorf("violation does not name the missing parameter: %q", result)
	}
}

func TestRegistryRejectsMaximumViolation(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{params: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": "integer", "maximum": 10},
		},
		"required": []string{"count"},
	}})

	result, err := r.Execute(context.Background(), "echo", map[string]any{"count": 99})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(result, "Error: invalid parameters") {
		t.Errorf("result = %q", result)
	}
}

func TestDefinitionsOpenAIShape(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	defs := r.Definitions()
	if len(defs) != 1 {
		t.Fatalf("got %d definitions", len(defs))
	}
	if defs[0]["type"] != "function" {
		t.Errorf("type = %v", defs[0]["type"])
	}
	fn := defs[0]["function"].(map[string]any)
	if fn["name"] != "echo" {
		t.Errorf("name = %v", fn["name"])
	}
	if fn["parameters"] == nil {
		t.Error("parameters missing")
	}
}

func TestRouteRoundTrip(t *testing.T) {
	ctx := WithRoute(context.Background(), Route{Channel: "telegram", ChatID: "42"})

	route, ok := RouteFrom(ctx)
	if !ok {
		t.Fatal("RouteFrom returned false")
	}
	if route.Channel != "telegram" || route.ChatID != "42" {
		t.Errorf("route = %+v", route)
	}

	if _, ok := RouteFrom(context.Background()); ok {
		t.Error("RouteFrom found a route on an empty context")
	}
}

type capturingPublisher struct {
	messages []*bus.OutboundMessage
}

func (p *capturingPublisher) PublishOutbound(msg *bus.OutboundMessage) {
	p.messages = append(p.messages, msg)
}

func TestMessageToolUsesRoute(t *testing.T) {
	pub := &capturingPublisher{}
	tool := NewMessageTool(pub)

	ctx := WithRoute(context.Background(), Route{Channel: "slack", ChatID: "C1"})
	result, err := tool.Execute(ctx, map[string]any{"content": "working on it"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result != "Message sent." {
		t.Errorf("result = %q", result)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Channel != "slack" || msg.ChatID != "C1" || msg.Content != "working on it" {
		t.Errorf("message = %+v", msg)
	}
}

func TestMessageToolWithoutRoute(t *testing.T) {
	tool := NewMessageTool(&capturingPublisher{})

	result, err := tool.Execute(context.Background(), map[string]any{"content": "hi"})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(result, "Error:") {
		t.Errorf("result = %q", result)
	}
}
