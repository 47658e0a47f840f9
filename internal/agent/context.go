package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ferroclaw/ferroclaw/internal/memory"
	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/session"
	"github.com/ferroclaw/ferroclaw/internal/skills"
	"github.com/ferroclaw/ferroclaw/internal/tools"
)

// bootstrapFiles are workspace files injected into the system prompt
// when present, in this order.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md", "IDENTITY.md"}

// ContextBuilder assembles the system prompt and turn messages.
type ContextBuilder struct {
	workspace string
	registry  *tools.Registry
	memory    *memory.Store
	skills    *skills.Loader
}

// NewContextBuilder creates a new ContextBuilder.
func NewContextBuilder(workspace string, registry *tools.Registry, mem *memory.Store, skillLoader *skills.Loader) *ContextBuilder {
	return &ContextBuilder{
		workspace: workspace,
		registry:  registry,
		memory:    mem,
		skills:    skillLoader,
	}
}

// BuildSystemPrompt constructs the full system prompt from identity,
// bootstrap files, memory and skills, plus the current session footer.
func (b *ContextBuilder) BuildSystemPrompt(route tools.Route) string {
	var parts []string

	parts = append(parts, b.identity())

	if bootstrap := b.loadBootstrapFiles(); bootstrap != "" {
		parts = append(parts, bootstrap)
	}

	if b.memory != nil {
		if mem := b.memory.Context(); mem != "" {
			parts = append(parts, "# Memory\n\n"+mem)
		}
	}

	if b.skills != nil {
		if summary := b.skills.Summary(); summary != "" {
			parts = append(parts, "# Skills\n\n"+summary)
		}
	}

	if route.Channel != "" {
		parts = append(parts, fmt.Sprintf("## Current session\nChannel: %s\nChat: %s", route.Channel, route.ChatID))
	}

	return strings.Join(parts, "\n\n---\n\n")
}

// BuildMessages assembles the provider message list for one turn:
// system prompt, session history, then the incoming user content with
// any media attachments listed as paths.
func (b *ContextBuilder) BuildMessages(history []session.Message, content string, media []string, route tools.Route) []provider.Message {
	msgs := make([]provider.Message, 0, len(history)+2)
	msgs = append(msgs, provider.Message{Role: "system", Content: b.BuildSystemPrompt(route)})

	for _, m := range history {
		role := m.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, provider.Message{Role: role, Content: m.Content})
	}

	msgs = append(msgs, provider.Message{Role: "user", Content: renderContent(content, media)})
	return msgs
}

func renderContent(content string, media []string) string {
	if len(media) == 0 {
		return content
	}
	var sb strings.Builder
	sb.WriteString(content)
	for _, path := range media {
		sb.WriteString("\n[attachment: " + path + "]")
	}
	return sb.String()
}

func (b *ContextBuilder) identity() string {
	t := time.Now()
	now := t.Format("2006-01-02 15:04 (Monday)")
	runtimeInfo := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	wsPath := expandWorkspace(b.workspace)

	var toolList strings.Builder
	if b.registry != nil {
		for _, tool := range b.registry.List() {
			toolList.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name(), tool.Description()))
		}
	}

	return fmt.Sprintf(`# ferroclaw

You are ferroclaw, a helpful, efficient AI assistant.

## Current Time
%s

## Runtime
%s

## Workspace
Your workspace is at: %s
- Memory files: %s/memory/MEMORY.md
- Daily notes: %s/memory/YYYY-MM-DD.md
- Custom skills: %s/skills/{skill-name}/SKILL.md

## Tools
%s
When responding to direct questions, reply directly with text.
Only use the send_message tool for progress updates during long work.
Always be helpful, accurate, and concise.`, now, runtimeInfo, wsPath, wsPath, wsPath, wsPath, toolList.String())
}

func (b *ContextBuilder) loadBootstrapFiles() string {
	wsPath := expandWorkspace(b.workspace)

	var parts []string
	for _, filename := range bootstrapFiles {
		content, err := os.ReadFile(filepath.Join(wsPath, filename))
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", filename, string(content)))
	}
	return strings.Join(parts, "\n\n")
}

func expandWorkspace(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}
