// Package agent implements the message loop, turn engine and subagent
// lifecycle around the bus.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/tools"
)

// Iteration ceilings for a single turn.
const (
	DefaultMaxIterations  = 20
	SubagentMaxIterations = 15
)

// Fallback texts when a turn exhausts its iteration ceiling without a
// final text response.
const (
	primaryFallback  = "I finished processing but have no response to give."
	subagentFallback = "Task finished without a final summary."
)

// Sampling defaults when the config leaves them unset.
const (
	defaultMaxTokens   = 8192
	defaultTemperature = 0.7
)

// Engine drives one bounded tool-calling turn against the provider.
type Engine struct {
	provider      provider.LLMProvider
	registry      *tools.Registry
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
	fallback      string
	logger        *slog.Logger
}

// NewEngine creates a turn engine. A zero maxIterations uses the
// default ceiling, an empty fallback uses the primary fallback text.
func NewEngine(p provider.LLMProvider, registry *tools.Registry, model string, maxIterations int, fallback string) *Engine {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if fallback == "" {
		fallback = primaryFallback
	}
	if model == "" {
		model = p.DefaultModel()
	}
	return &Engine{
		provider:      p,
		registry:      registry,
		model:         model,
		maxTokens:     defaultMaxTokens,
		temperature:   defaultTemperature,
		maxIterations: maxIterations,
		fallback:      fallback,
		logger:        slog.Default().With("component", "engine"),
	}
}

// SetSampling overrides the request sampling knobs. Non-positive values
// keep the defaults.
func (e *Engine) SetSampling(maxTokens int, temperature float64) {
	if maxTokens > 0 {
		e.maxTokens = maxTokens
	}
	if temperature > 0 {
		e.temperature = temperature
	}
}

// Run executes a turn: it calls the model, executes any requested tools
// in the order the model listed them, feeds results back, and repeats
// until the model answers with plain text or the iteration ceiling is
// reached. Provider failures come back as error-content text so the
// turn always terminates with something to deliver.
func (e *Engine) Run(ctx context.Context, messages []provider.Message) (string, error) {
	msgs := make([]provider.Message, len(messages))
	copy(msgs, messages)

	for i := 0; i < e.maxIterations; i++ {
		resp, err := e.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    msgs,
			Tools:       e.toolDefinitions(),
			Model:       e.model,
			MaxTokens:   e.maxTokens,
			Temperature: e.temperature,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			e.logger.Error("provider call failed", "error", err, "iteration", i)
			return fmt.Sprintf("Error: %v", err), nil
		}

		if !resp.HasToolCalls() {
			return resp.Content, nil
		}

		msgs = append(msgs, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := e.executeCall(ctx, call)
			msgs = append(msgs, provider.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    result,
			})
		}
	}

	e.logger.Warn("turn hit iteration ceiling", "max", e.maxIterations)
	return e.fallback, nil
}

func (e *Engine) executeCall(ctx context.Context, call provider.ToolCall) string {
	e.logger.Info("executing tool", "tool", call.Name, "call_id", call.ID)

	result, err := e.registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		// Unknown tool or hard failure. The model gets the message as
		// a tool result and can recover.
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func (e *Engine) toolDefinitions() []provider.ToolDefinition {
	raw := e.registry.Definitions()
	defs := make([]provider.ToolDefinition, 0, len(raw))
	for _, d := range raw {
		fn, _ := d["function"].(map[string]any)
		if fn == nil {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]any)
		defs = append(defs, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        name,
				Description: desc,
				Parameters:  params,
			},
		})
	}
	return defs
}
