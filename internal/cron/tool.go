package cron

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferroclaw/ferroclaw/internal/tools"
)

// ReminderTool lets the agent manage its own schedules. The target chat
// defaults to the route of the turn that created the reminder.
type ReminderTool struct {
	service *Service
}

// NewReminderTool creates a ReminderTool backed by the cron service.
func NewReminderTool(service *Service) *ReminderTool {
	return &ReminderTool{service: service}
}

func (t *ReminderTool) Name() string { return "reminder" }

func (t *ReminderTool) Description() string {
	return "Manage scheduled reminders. Actions: add (name, schedule in cron syntax, message), remove (id), list."
}

func (t *ReminderTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{"add", "remove", "list"},
			},
			"name": map[string]any{
				"type":        "string",
				"description": "Short name for the reminder (add)",
			},
			"schedule": map[string]any{
				"type":        "string",
				"description": "Five-field cron expression, e.g. '0 9 * * *' (add)",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "The prompt delivered when the reminder fires (add)",
			},
			"id": map[string]any{
				"type":        "string",
				"description": "Reminder id (remove)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *ReminderTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	switch tools.GetString(params, "action", "") {
	case "add":
		name := tools.GetString(params, "name", "reminder")
		schedule := tools.GetString(params, "schedule", "")
		message := tools.GetString(params, "message", "")
		if schedule == "" || message == "" {
			return "Error: add requires schedule and message", nil
		}

		route, _ := tools.RouteFrom(ctx)
		job, err := t.service.Add(name, schedule, message, route.Channel, route.ChatID)
		if err != nil {
			return fmt.Sprintf("Error: %v", err), nil
		}
		return fmt.Sprintf("Reminder '%s' scheduled with id %s (%s).", job.Name, job.ID, job.Schedule), nil

	case "remove":
		id := tools.GetString(params, "id", "")
		if id == "" {
			return "Error: remove requires id", nil
		}
		if err := t.service.Remove(id); err != nil {
			return fmt.Sprintf("Error: %v", err), nil
		}
		return "Reminder removed.", nil

	case "list":
		jobs := t.service.List()
		if len(jobs) == 0 {
			return "No reminders scheduled.", nil
		}
		var sb strings.Builder
		for _, job := range jobs {
			sb.WriteString(fmt.Sprintf("- %s [%s] %s: %s\n", job.ID, job.Schedule, job.Name, job.Message))
		}
		return sb.String(), nil

	default:
		return "Error: action must be add, remove or list", nil
	}
}
