// Package tasklog records background task runs in a local sqlite
// database for idempotency and inspection.
package tasklog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task is one recorded background run.
type Task struct {
	TaskID         string
	IdempotencyKey string
	Kind           string
	Status         string
	Payload        string
	Result         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store wraps the sqlite task table.
type Store struct {
	db *sql.DB
}

// Open creates or opens the task database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create tasklog dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open tasklog db: %w", err)
	}

	// One writer at a time keeps sqlite happy under concurrent spawns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL UNIQUE,
			idempotency_key TEXT UNIQUE,
			kind TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			payload TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a task. When a task with the same idempotency key
// already exists, that task is returned and created is false.
func (s *Store) Record(taskID, idempotencyKey, kind, payload string) (Task, bool, error) {
	if idempotencyKey != "" {
		existing, err := s.byIdempotencyKey(idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if err != sql.ErrNoRows {
			return Task{}, false, err
		}
	}

	now := time.Now().UTC()
	key := sql.NullString{String: idempotencyKey, Valid: idempotencyKey != ""}
	_, err := s.db.Exec(
		`INSERT INTO tasks (task_id, idempotency_key, kind, status, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		taskID, key, kind, StatusPending, payload, now, now,
	)
	if err != nil {
		return Task{}, false, fmt.Errorf("insert task: %w", err)
	}

	task, err := s.Get(taskID)
	return task, true, err
}

// SetStatus updates a task's status and optional result.
func (s *Store) SetStatus(taskID, status, result string) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, result = ?, updated_at = ? WHERE task_id = ?`,
		status, result, time.Now().UTC(), taskID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown task: %s", taskID)
	}
	return nil
}

// Get returns a task by id.
func (s *Store) Get(taskID string) (Task, error) {
	row := s.db.QueryRow(
		`SELECT task_id, idempotency_key, kind, status, payload, result, created_at, updated_at
		 FROM tasks WHERE task_id = ?`, taskID,
	)
	return scanTask(row)
}

// Recent returns the most recently created tasks.
func (s *Store) Recent(limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT task_id, idempotency_key, kind, status, payload, result, created_at, updated_at
		 FROM tasks ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Store) byIdempotencyKey(key string) (Task, error) {
	row := s.db.QueryRow(
		`SELECT task_id, idempotency_key, kind, status, payload, result, created_at, updated_at
		 FROM tasks WHERE idempotency_key = ?`, key,
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, sql.ErrNoRows
		}
		return Task{}, err
	}
	return task, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var task Task
	var key sql.NullString
	if err := row.Scan(&task.TaskID, &key, &task.Kind, &task.Status, &task.Payload, &task.Result, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.IdempotencyKey = key.String
	return task, nil
}
