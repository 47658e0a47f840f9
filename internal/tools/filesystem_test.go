package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes", "a.txt")
	ctx := context.Background()

	write := NewWriteFileTool(func() string { return dir })
	result, err := write.Execute(ctx, map[string]any{"path": path, "content": "hello"})
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if !strings.HasPrefix(result, "Successfully wrote") {
		t.Errorf("write result = %q", result)
	}

	read := NewReadFileTool()
	result, err = read.Execute(ctx, map[string]any{"path": path})
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if result != "hello" {
		t.Errorf("read result = %q", result)
	}
}

func TestWriteOutsideWorkspaceRefused(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "x.txt")

	write := NewWriteFileTool(func() string { return dir })
	result, err := write.Execute(context.Background(), map[string]any{"path": outside, "content": "x"})
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if !strings.HasPrefix(result, "Error:") {
		t.Errorf("result = %q", result)
	}
	if _, statErr := os.Stat(outside); !os.IsNotExist(statErr) {
		t.Error("file was written outside workspace")
	}
}

func TestReadMissingFileReturnsErrorText(t *testing.T) {
	read := NewReadFileTool()
	result, err := read.Execute(context.Background(), map[string]any{"path": "/nonexistent/file.txt"})
	if err != nil {
		t.Fatalf("read returned error instead of text: %v", err)
	}
	if !strings.HasPrefix(result, "Error: file not found") {
		t.Errorf("result = %q", result)
	}
}

func TestEditReplacesUniqueText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("alpha beta gamma"), 0644)

	edit := NewEditFileTool(func() string { return dir })
	result, err := edit.Execute(context.Background(), map[string]any{
		"path": path, "old_text": "beta", "new_text": "delta",
	})
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if !strings.HasPrefix(result, "Successfully edited") {
		t.Errorf("result = %q", result)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "alpha delta gamma" {
		t.Errorf("content = %q", content)
	}
}

func TestEditRefusesAmbiguousText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("x y x"), 0644)

	edit := NewEditFileTool(func() string { return dir })
	result, err := edit.Execute(context.Background(), map[string]any{
		"path": path, "old_text": "x", "new_text": "z",
	})
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if !strings.Contains(result, "appears 2 times") {
		t.Errorf("result = %q", result)
	}

	// File must be untouched.
	content, _ := os.ReadFile(path)
	if string(content) != "x y x" {
		t.Errorf("file modified despite ambiguity: %q", content)
	}
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(dir, "sub"), 0755)

	list := NewListDirTool()
	result, err := list.Execute(context.Background(), map[string]any{"path": dir})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(result, "[FILE] a.txt") || !strings.Contains(result, "[DIR]  sub/") {
		t.Errorf("result = %q", result)
	}
}

func TestExecToolRunsCommand(t *testing.T) {
	tool := NewExecTool(0, false, t.TempDir())

	result, err := tool.Execute(context.Background(), map[string]any{"command": "echo ok"})
	if err != nil {
		t.Fatalf("exec error: %v", err)
	}
	if strings.TrimSpace(result) != "ok" {
		t.Errorf("result = %q", result)
	}
}

func TestExecToolRejectsSiblingWorkingDir(t *testing.T) {
	base := t.TempDir()
	workspace := filepath.Join(base, "ws")
	sibling := filepath.Join(base, "ws-evil")
	os.MkdirAll(workspace, 0755)
	os.MkdirAll(sibling, 0755)

	tool := NewExecTool(0, true, workspace)

	// Shares the workspace path prefix but lives outside it.
	result, err := tool.Execute(context.Background(), map[string]any{
		"command":     "echo ok",
		"working_dir": sibling,
	})
	if err != nil {
		t.Fatalf("exec error: %v", err)
	}
	if !strings.Contains(result, "working directory outside workspace") {
		t.Errorf("sibling dir not rejected: %q", result)
	}

	inside := filepath.Join(workspace, "sub")
	os.MkdirAll(inside, 0755)
	result, err = tool.Execute(context.Background(), map[string]any{
		"command":     "echo ok",
		"working_dir": inside,
	})
	if err != nil {
		t.Fatalf("exec error: %v", err)
	}
	if strings.TrimSpace(result) != "ok" {
		t.Errorf("inside dir rejected: %q", result)
	}
}

func TestExecToolBlocksDangerousCommand(t *testing.T) {
	tool := NewExecTool(0, false, t.TempDir())

	result, err := tool.Execute(context.Background(), map[string]any{"command": "rm -rf /"})
	if err != nil {
		t.Fatalf("exec error: %v", err)
	}
	if !strings.HasPrefix(result, "Error:") {
		t.Errorf("dangerous command not blocked: %q", result)
	}
}
