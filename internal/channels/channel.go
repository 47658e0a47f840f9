// Package channels implements the chat platform adapters (Telegram, Slack,
// Discord) that bridge platform events onto the message bus.
package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ferroclaw/ferroclaw/internal/bus"
)

// Channel defines the interface for chat platforms (Telegram, Slack, etc).
type Channel interface {
	// Name returns the channel name (e.g. "telegram").
	Name() string
	// Start starts the channel listener.
	Start(ctx context.Context) error
	// Stop stops the channel listener.
	Stop() error
	// Send sends a message to a specific chat.
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	Bus *bus.MessageBus
}

// Manager owns the lifecycle of all enabled channels and wires each one
// into the outbound side of the bus.
type Manager struct {
	channels []Channel
	logger   *slog.Logger
}

func NewManager() *Manager {
	return &Manager{logger: slog.Default().With("component", "channels")}
}

// Register adds a channel to the manager. Nil channels are ignored so
// callers can pass the result of conditional constructors directly.
func (m *Manager) Register(ch Channel) {
	if ch == nil {
		return
	}
	m.channels = append(m.channels, ch)
}

// StartAll starts every registered channel and subscribes it to outbound
// messages addressed to its name. Delivery failures are logged, never
// propagated: a dead chat must not take the agent down.
func (m *Manager) StartAll(ctx context.Context, b *bus.MessageBus) error {
	for _, ch := range m.channels {
		ch := ch
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("starting %s channel: %w", ch.Name(), err)
		}
		b.SubscribeOutbound(ch.Name(), func(msg *bus.OutboundMessage) {
			if err := ch.Send(ctx, msg); err != nil {
				m.logger.Error("outbound delivery failed",
					"channel", ch.Name(), "chat_id", msg.ChatID, "error", err)
			}
		})
		m.logger.Info("channel started", "channel", ch.Name())
	}
	return nil
}

// StopAll stops every channel. Errors are logged and the remaining
// channels are still stopped.
func (m *Manager) StopAll() {
	for _, ch := range m.channels {
		if err := ch.Stop(); err != nil {
			m.logger.Error("channel stop failed", "channel", ch.Name(), "error", err)
		}
	}
}

// Names lists the registered channel names.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// allowed reports whether senderID passes an allowlist. An empty list
// allows everyone.
func allowed(allowFrom []string, senderID string) bool {
	if len(allowFrom) == 0 {
		return true
	}
	for _, id := range allowFrom {
		if id == senderID {
			return true
		}
	}
	return false
}
