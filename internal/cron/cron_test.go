package cron

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ferroclaw/ferroclaw/internal/bus"
)

func TestAddValidatesSchedule(t *testing.T) {
	s := NewService(bus.NewMessageBus(), "")

	if _, err := s.Add("bad", "not a schedule", "msg", "cli", "direct"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}

	job, err := s.Add("daily", "0 9 * * *", "morning summary", "telegram", "42")
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if len(job.ID) != 8 {
		t.Errorf("job id = %q", job.ID)
	}
	if len(s.List()) != 1 {
		t.Errorf("List() has %d jobs", len(s.List()))
	}
}

func TestFirePublishesSystemMessage(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewService(b, "")

	s.Fire(Job{ID: "abc", Name: "standup", Message: "post the standup", Channel: "slack", ChatID: "C1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("no message: %v", err)
	}
	if msg.Channel != bus.SystemChannel || msg.SenderID != "cron" {
		t.Errorf("message = %+v", msg)
	}
	if msg.ChatID != "slack:C1" {
		t.Errorf("chat id = %q", msg.ChatID)
	}
	if msg.Origin == nil || msg.Origin.Channel != "slack" {
		t.Errorf("origin = %+v", msg.Origin)
	}
	if !strings.Contains(msg.Content, "standup") || !strings.Contains(msg.Content, "post the standup") {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestJobsPersistAcrossRestart(t *testing.T) {
	store := filepath.Join(t.TempDir(), "cron.json")
	b := bus.NewMessageBus()

	s := NewService(b, store)
	if _, err := s.Add("weekly", "0 9 * * 1", "plan the week", "cli", "direct"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	restored := NewService(b, store)
	jobs := restored.List()
	if len(jobs) != 1 {
		t.Fatalf("restored %d jobs, want 1", len(jobs))
	}
	if jobs[0].Name != "weekly" || jobs[0].Schedule != "0 9 * * 1" {
		t.Errorf("job = %+v", jobs[0])
	}
}

func TestRemove(t *testing.T) {
	s := NewService(bus.NewMessageBus(), "")
	job, err := s.Add("once", "* * * * *", "x", "", "")
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	if err := s.Remove(job.ID); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if len(s.List()) != 0 {
		t.Errorf("jobs remain after remove")
	}
	if err := s.Remove(job.ID); err == nil {
		t.Error("expected error removing unknown job")
	}
}
