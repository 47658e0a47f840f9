// Package tools provides the tool framework and implementations for the agent.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool is the interface that all agent tools must implement.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters.
	// Returns result string and error. On error, return user-friendly message.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Route identifies where a tool invocation should address its effects.
// It is carried on the context so shared tool instances stay stateless
// across concurrent turns.
type Route struct {
	Channel string
	ChatID  string
}

type routeKey struct{}

// WithRoute returns a context carrying the delivery route for the turn.
func WithRoute(ctx context.Context, route Route) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

// RouteFrom extracts the delivery route from the context.
func RouteFrom(ctx context.Context) (Route, bool) {
	route, ok := ctx.Value(routeKey{}).(Route)
	return route, ok
}

// Registry manages tool registration and execution.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Registering a tool with an
// existing name replaces the previous one.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns tool definitions in OpenAI function format.
func (r *Registry) Definitions() []map[string]any {
	tools := r.List()
	result := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return result
}

// Execute runs a tool by name. Parameters are validated against the
// tool's schema first; violations come back as a result string so the
// model can correct itself instead of killing the turn.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	if violations := ValidateParams(name, tool.Parameters(), params); len(violations) > 0 {
		return "Error: invalid parameters for " + name + ": " + joinViolations(violations), nil
	}

	return tool.Execute(ctx, params)
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
