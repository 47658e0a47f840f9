package tasklog

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndStatusLifecycle(t *testing.T) {
	store := openTestStore(t)

	task, created, err := store.Record("abc12345", "", "subagent", "research topic")
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if !created {
		t.Fatal("created = false for new task")
	}
	if task.Status != StatusPending {
		t.Errorf("status = %q", task.Status)
	}

	if err := store.SetStatus("abc12345", StatusProcessing, ""); err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}
	if err := store.SetStatus("abc12345", StatusCompleted, "all done"); err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}

	got, err := store.Get("abc12345")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != StatusCompleted || got.Result != "all done" {
		t.Errorf("task = %+v", got)
	}
}

func TestIdempotencyKeyDeduplicates(t *testing.T) {
	store := openTestStore(t)

	first, created, err := store.Record("t1", "key-1", "subagent", "payload")
	if err != nil || !created {
		t.Fatalf("first Record() = %v, created %v", err, created)
	}

	second, created, err := store.Record("t2", "key-1", "subagent", "payload")
	if err != nil {
		t.Fatalf("second Record() error: %v", err)
	}
	if created {
		t.Error("duplicate idempotency key created a new task")
	}
	if second.TaskID != first.TaskID {
		t.Errorf("dedup returned %q, want %q", second.TaskID, first.TaskID)
	}
}

func TestSetStatusUnknownTask(t *testing.T) {
	store := openTestStore(t)

	if err := store.SetStatus("missing", StatusFailed, ""); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestRecentOrdering(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if _, _, err := store.Record(id, "", "subagent", ""); err != nil {
			t.Fatalf("Record(%q) error: %v", id, err)
		}
	}

	tasks, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	if tasks[0].TaskID != "c" {
		t.Errorf("newest task = %q", tasks[0].TaskID)
	}
}
