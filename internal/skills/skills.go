// Package skills loads SKILL.md files that extend the agent's prompt.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Skill is one loaded skill directory.
type Skill struct {
	Name        string
	Description string
	Always      bool
	Content     string
	Path        string
}

// Loader discovers skills under workspace/skills/{name}/SKILL.md.
type Loader struct {
	dir string
}

// NewLoader creates a skills loader for the given workspace.
func NewLoader(workspace string) *Loader {
	return &Loader{dir: filepath.Join(workspace, "skills")}
}

// List returns all discovered skills sorted by directory order.
func (l *Loader) List() []Skill {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, entry.Name(), "SKILL.md")
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		skill := parseSkill(entry.Name(), string(raw))
		skill.Path = path
		skills = append(skills, skill)
	}
	return skills
}

// Get returns a skill by name.
func (l *Loader) Get(name string) (Skill, bool) {
	for _, skill := range l.List() {
		if skill.Name == name {
			return skill, true
		}
	}
	return Skill{}, false
}

// Summary builds the prompt block describing available skills. Skills
// flagged always are included in full, the rest as one-line mentions
// the model can read with read_file.
func (l *Loader) Summary() string {
	skills := l.List()
	if len(skills) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, skill := range skills {
		if skill.Always {
			sb.WriteString(fmt.Sprintf("## Skill: %s\n\n%s\n\n", skill.Name, skill.Content))
		}
	}
	var listed []string
	for _, skill := range skills {
		if skill.Always {
			continue
		}
		desc := skill.Description
		if desc == "" {
			desc = "no description"
		}
		listed = append(listed, fmt.Sprintf("- %s: %s (%s)", skill.Name, desc, skill.Path))
	}
	if len(listed) > 0 {
		sb.WriteString("Available skills (read the file for full instructions):\n")
		sb.WriteString(strings.Join(listed, "\n"))
	}
	return strings.TrimSpace(sb.String())
}

// parseSkill splits optional --- frontmatter from the skill body.
func parseSkill(name, raw string) Skill {
	skill := Skill{Name: name, Content: strings.TrimSpace(raw)}

	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "---") {
		return skill
	}
	rest := trimmed[3:]
	end := strings.Index(rest, "---")
	if end < 0 {
		return skill
	}

	front := rest[:end]
	skill.Content = strings.TrimSpace(rest[end+3:])

	for _, line := range strings.Split(front, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "name":
			if value != "" {
				skill.Name = value
			}
		case "description":
			skill.Description = value
		case "always":
			skill.Always = value == "true"
		}
	}
	return skill
}
