// Package heartbeat periodically wakes the agent with a system prompt
// derived from the workspace HEARTBEAT.md checklist.
package heartbeat

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ferroclaw/ferroclaw/internal/bus"
)

// OKToken is the reply the agent gives when nothing needs attention.
// Responses containing it are dropped instead of delivered.
const OKToken = "HEARTBEAT_OK"

// DefaultInterval between heartbeat ticks.
const DefaultInterval = 30 * time.Minute

const heartbeatFile = "HEARTBEAT.md"

// Service publishes heartbeat prompts onto the bus.
type Service struct {
	bus       *bus.MessageBus
	workspace string
	interval  time.Duration
	logger    *slog.Logger
}

// NewService creates a heartbeat service. A zero interval uses the default.
func NewService(b *bus.MessageBus, workspace string, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		bus:       b,
		workspace: workspace,
		interval:  interval,
		logger:    slog.Default().With("component", "heartbeat"),
	}
}

// Run ticks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("heartbeat started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("heartbeat stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick reads HEARTBEAT.md and publishes one prompt when the file has
// actionable content.
func (s *Service) Tick() {
	content, err := os.ReadFile(filepath.Join(s.workspace, heartbeatFile))
	if err != nil {
		s.logger.Debug("no heartbeat file, skipping tick")
		return
	}
	if IsEffectivelyEmpty(string(content)) {
		s.logger.Debug("heartbeat file has no actionable content, skipping tick")
		return
	}

	prompt := "Heartbeat check. Review the checklist below and act on anything that needs attention.\n\n" +
		string(content) +
		"\n\nIf nothing needs attention right now, reply with exactly " + OKToken + " and nothing else."

	s.bus.PublishInbound(&bus.InboundMessage{
		Channel:   bus.SystemChannel,
		SenderID:  "heartbeat",
		ChatID:    "cli:heartbeat",
		Content:   prompt,
		Timestamp: time.Now(),
	})
}

// IsEffectivelyEmpty reports whether the heartbeat file contains only
// skeleton lines: blanks, markdown headings, HTML comments and
// unchecked empty checkboxes.
func IsEffectivelyEmpty(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "<!--") {
			continue
		}
		if isEmptyCheckbox(line) {
			continue
		}
		return false
	}
	return true
}

func isEmptyCheckbox(line string) bool {
	for _, prefix := range []string{"- [ ]", "* [ ]", "- [x]", "* [x]"} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest) == ""
		}
	}
	return false
}
