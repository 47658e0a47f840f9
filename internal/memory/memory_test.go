package memory

import (
	"strings"
	"testing"
)

func TestLongTermRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	if got := s.ReadLongTerm(); got != "" {
		t.Errorf("empty store returned %q", got)
	}

	if err := s.WriteLongTerm("# Facts\n- user likes Go\n"); err != nil {
		t.Fatalf("WriteLongTerm() error: %v", err)
	}
	if got := s.ReadLongTerm(); !strings.Contains(got, "user likes Go") {
		t.Errorf("ReadLongTerm() = %q", got)
	}
}

func TestAppendToday(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.AppendToday("met with team"); err != nil {
		t.Fatalf("AppendToday() error: %v", err)
	}
	if err := s.AppendToday("shipped release"); err != nil {
		t.Fatalf("AppendToday() error: %v", err)
	}

	today := s.ReadToday()
	if !strings.Contains(today, "met with team") || !strings.Contains(today, "shipped release") {
		t.Errorf("ReadToday() = %q", today)
	}
}

func TestContextCombinesSources(t *testing.T) {
	s := NewStore(t.TempDir())

	if got := s.Context(); got != "" {
		t.Errorf("empty store context = %q", got)
	}

	s.WriteLongTerm("remember this")
	s.AppendToday("did that")

	got := s.Context()
	if !strings.Contains(got, "Long-term memory") || !strings.Contains(got, "remember this") {
		t.Errorf("context missing long-term section: %q", got)
	}
	if !strings.Contains(got, "Today's notes") || !strings.Contains(got, "did that") {
		t.Errorf("context missing daily section: %q", got)
	}
}
