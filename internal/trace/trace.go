// Package trace publishes runtime events to Kafka for external
// observers. Without configured brokers the publisher is a no-op.
package trace

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is one runtime trace record.
type Event struct {
	Type      string         `json:"type"`
	Session   string         `json:"session,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Event types emitted by the runtime.
const (
	EventTurnCompleted    = "turn_completed"
	EventTurnFailed       = "turn_failed"
	EventSubagentSpawned  = "subagent_spawned"
	EventSubagentFinished = "subagent_finished"
)

// Emitter is the event sink consumed by the runtime; Publisher
// satisfies it.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes trace events to a Kafka topic.
type Publisher struct {
	writer writer
	logger *slog.Logger
}

// NewPublisher creates a trace publisher. An empty broker list returns
// a disabled publisher whose Emit does nothing.
func NewPublisher(brokers []string, topic string) *Publisher {
	p := &Publisher{logger: slog.Default().With("component", "trace")}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return p
}

// Enabled reports whether events are actually published.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// Emit publishes one event. Failures are logged, never propagated: the
// agent must not stall because an observer is down.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p.writer == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("trace event not encodable", "type", event.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
		Time:  event.Timestamp,
	}); err != nil {
		p.logger.Warn("trace publish failed", "type", event.Type, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
