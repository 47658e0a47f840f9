package tools

import (
	"context"

	"github.com/ferroclaw/ferroclaw/internal/bus"
)

// OutboundPublisher publishes messages for channel delivery.
type OutboundPublisher interface {
	PublishOutbound(msg *bus.OutboundMessage)
}

// MessageTool sends a message to the chat the current turn belongs to.
// The destination comes from the route on the context, so one shared
// instance serves concurrent turns for different chats.
type MessageTool struct {
	publisher OutboundPublisher
}

// NewMessageTool creates a new MessageTool.
func NewMessageTool(publisher OutboundPublisher) *MessageTool {
	return &MessageTool{publisher: publisher}
}

func (t *MessageTool) Name() string { return "send_message" }

func (t *MessageTool) Description() string {
	return "Send a message to the user immediately, before the turn finishes. Useful for progress updates during long work."
}

func (t *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The message text to send",
			},
		},
		"required": []string{"content"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	content := GetString(params, "content", "")
	if content == "" {
		return "Error: content is required", nil
	}

	route, ok := RouteFrom(ctx)
	if !ok {
		return "Error: no delivery route for this turn", nil
	}

	t.publisher.PublishOutbound(&bus.OutboundMessage{
		Channel: route.Channel,
		ChatID:  route.ChatID,
		Content: content,
	})
	return "Message sent.", nil
}
