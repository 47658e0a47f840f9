package tools

import (
	"context"
	"fmt"
)

// Spawner starts background subagent tasks.
type Spawner interface {
	Spawn(task, label string, origin Route) (string, error)
	RunningCount() int
}

// SpawnTool hands a task to a background subagent and returns
// immediately with the task id.
type SpawnTool struct {
	spawner Spawner
}

// NewSpawnTool creates a new SpawnTool.
func NewSpawnTool(spawner Spawner) *SpawnTool {
	return &SpawnTool{spawner: spawner}
}

func (t *SpawnTool) Name() string { return "spawn" }

func (t *SpawnTool) Description() string {
	return "Spawn a background subagent to work on a task while you keep talking to the user. The result is announced to you when the task completes."
}

func (t *SpawnTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "The task for the subagent to perform",
			},
			"label": map[string]any{
				"type":        "string",
				"description": "Optional short label for the task",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	task := GetString(params, "task", "")
	if task == "" {
		return "Error: task is required", nil
	}
	label := GetString(params, "label", "")

	route, _ := RouteFrom(ctx)

	taskID, err := t.spawner.Spawn(task, label, route)
	if err != nil {
		return fmt.Sprintf("Error: failed to spawn subagent: %v", err), nil
	}

	return fmt.Sprintf("Subagent spawned with task id %s. The result will be announced when it completes.", taskID), nil
}

// SubagentStatusTool reports how many background tasks are running.
type SubagentStatusTool struct {
	spawner Spawner
}

// NewSubagentStatusTool creates a new SubagentStatusTool.
func NewSubagentStatusTool(spawner Spawner) *SubagentStatusTool {
	return &SubagentStatusTool{spawner: spawner}
}

func (t *SubagentStatusTool) Name() string { return "subagent_status" }

func (t *SubagentStatusTool) Description() string {
	return "Report the number of currently running background subagent tasks."
}

func (t *SubagentStatusTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *SubagentStatusTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	n := t.spawner.RunningCount()
	if n == 0 {
		return "No background tasks running.", nil
	}
	return fmt.Sprintf("%d background task(s) running.", n), nil
}
