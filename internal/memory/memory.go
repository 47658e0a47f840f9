// Package memory provides the agent's long-term memory files.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store manages MEMORY.md and daily note files under the workspace.
type Store struct {
	dir string
}

// NewStore creates a memory store rooted at workspace/memory.
func NewStore(workspace string) *Store {
	dir := filepath.Join(workspace, "memory")
	os.MkdirAll(dir, 0755)
	return &Store{dir: dir}
}

// Dir returns the memory directory path.
func (s *Store) Dir() string { return s.dir }

// ReadLongTerm returns the contents of MEMORY.md, empty when absent.
func (s *Store) ReadLongTerm() string {
	content, err := os.ReadFile(filepath.Join(s.dir, "MEMORY.md"))
	if err != nil {
		return ""
	}
	return string(content)
}

// WriteLongTerm replaces MEMORY.md.
func (s *Store) WriteLongTerm(content string) error {
	if err := os.WriteFile(filepath.Join(s.dir, "MEMORY.md"), []byte(content), 0644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}

// ReadToday returns the contents of today's note, empty when absent.
func (s *Store) ReadToday() string {
	content, err := os.ReadFile(s.todayPath())
	if err != nil {
		return ""
	}
	return string(content)
}

// AppendToday appends an entry to today's note, creating it if needed.
func (s *Store) AppendToday(entry string) error {
	path := s.todayPath()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open daily note: %w", err)
	}
	defer f.Close()

	line := strings.TrimRight(entry, "\n") + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append daily note: %w", err)
	}
	return nil
}

// Context assembles the memory block for the system prompt. It combines
// long-term memory with today's note when either exists.
func (s *Store) Context() string {
	var parts []string
	if lt := strings.TrimSpace(s.ReadLongTerm()); lt != "" {
		parts = append(parts, "## Long-term memory\n\n"+lt)
	}
	if today := strings.TrimSpace(s.ReadToday()); today != "" {
		parts = append(parts, "## Today's notes\n\n"+today)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Store) todayPath() string {
	return filepath.Join(s.dir, time.Now().Format("2006-01-02")+".md")
}
