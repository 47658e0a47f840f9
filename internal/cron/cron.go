// Package cron schedules recurring agent prompts.
package cron

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"

	"github.com/ferroclaw/ferroclaw/internal/bus"
)

// Job is one persisted schedule. When it fires, Message is delivered to
// the agent as a system prompt routed back to Channel/ChatID.
type Job struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Message   string    `json:"message"`
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Service owns the cron runner and the job store file.
type Service struct {
	bus       *bus.MessageBus
	storePath string

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cronlib.EntryID
	runner  *cronlib.Cron
	logger  *slog.Logger
}

// NewService creates a cron service persisting jobs at storePath.
func NewService(b *bus.MessageBus, storePath string) *Service {
	s := &Service{
		bus:       b,
		storePath: storePath,
		jobs:      make(map[string]Job),
		entries:   make(map[string]cronlib.EntryID),
		runner:    cronlib.New(),
		logger:    slog.Default().With("component", "cron"),
	}
	s.restore()
	return s
}

// Start begins firing schedules.
func (s *Service) Start() {
	s.runner.Start()
	s.logger.Info("cron started", "jobs", len(s.jobs))
}

// Stop halts the runner and waits for running fires.
func (s *Service) Stop() {
	ctx := s.runner.Stop()
	<-ctx.Done()
	s.logger.Info("cron stopped")
}

// Add registers and persists a new job. The schedule uses standard
// five-field cron syntax.
func (s *Service) Add(name, schedule, message, channel, chatID string) (Job, error) {
	job := Job{
		ID:        uuid.NewString()[:8],
		Name:      name,
		Schedule:  schedule,
		Message:   message,
		Channel:   channel,
		ChatID:    chatID,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scheduleLocked(job); err != nil {
		return Job{}, err
	}
	s.jobs[job.ID] = job
	s.persistLocked()
	s.logger.Info("cron job added", "id", job.ID, "name", name, "schedule", schedule)
	return job, nil
}

// Remove unschedules and deletes a job.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("unknown cron job: %s", id)
	}
	if entryID, ok := s.entries[id]; ok {
		s.runner.Remove(entryID)
		delete(s.entries, id)
	}
	delete(s.jobs, id)
	s.persistLocked()
	return nil
}

// List returns all jobs sorted by creation time.
func (s *Service) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Fire publishes the job's prompt onto the bus. Exported so tests and
// manual triggers share the scheduled path.
func (s *Service) Fire(job Job) {
	channel := job.Channel
	if channel == "" {
		channel = "cli"
	}
	chatID := job.ChatID
	if chatID == "" {
		chatID = "direct"
	}

	s.bus.PublishInbound(&bus.InboundMessage{
		Channel:   bus.SystemChannel,
		SenderID:  "cron",
		ChatID:    channel + ":" + chatID,
		Origin:    &bus.Origin{Channel: channel, ChatID: chatID},
		Content:   fmt.Sprintf("Scheduled reminder '%s': %s", job.Name, job.Message),
		Timestamp: time.Now(),
	})
	s.logger.Info("cron job fired", "id", job.ID, "name", job.Name)
}

func (s *Service) scheduleLocked(job Job) error {
	entryID, err := s.runner.AddFunc(job.Schedule, func() { s.Fire(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", job.Schedule, err)
	}
	s.entries[job.ID] = entryID
	return nil
}

func (s *Service) restore() {
	if s.storePath == "" {
		return
	}
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		return
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		s.logger.Warn("cron store unreadable, starting empty", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		if err := s.scheduleLocked(job); err != nil {
			s.logger.Warn("dropping unschedulable job", "id", job.ID, "error", err)
			continue
		}
		s.jobs[job.ID] = job
	}
}

func (s *Service) persistLocked() {
	if s.storePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0700); err != nil {
		return
	}

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return
	}
	tmp := s.storePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return
	}
	_ = os.Rename(tmp, s.storePath)
}
