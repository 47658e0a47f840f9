// Package bus provides the async message bus for channel-agent communication.
package bus

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SystemChannel marks messages synthesized inside the runtime (subagent
// announcements, cron fires) rather than received from a chat platform.
const SystemChannel = "system"

// Origin identifies the channel/chat a synthetic message should be routed
// back to.
type Origin struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
}

// InboundMessage represents a message from a channel to the agent.
type InboundMessage struct {
	Channel   string    `json:"channel"`
	SenderID  string    `json:"sender_id"`
	ChatID    string    `json:"chat_id"`
	Content   string    `json:"content"`
	Media     []string  `json:"media,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Origin is set on system messages so the reply can be routed to the
	// requester that caused the background work. The same origin is also
	// string-encoded into ChatID ("channel:chat_id") for compatibility.
	Origin *Origin `json:"origin,omitempty"`
}

// SessionKey returns the session identity for this message.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// ParseOrigin resolves the routing origin of a system message. It prefers the
// typed Origin and falls back to splitting ChatID on the first colon. Without
// a separator the origin defaults to the cli channel.
func (m *InboundMessage) ParseOrigin() Origin {
	if m.Origin != nil && m.Origin.Channel != "" {
		return *m.Origin
	}
	if ch, chat, ok := strings.Cut(m.ChatID, ":"); ok {
		return Origin{Channel: ch, ChatID: chat}
	}
	return Origin{Channel: "cli", ChatID: m.ChatID}
}

// OutboundMessage represents a message from the agent to a channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// queue is an unbounded FIFO. Enqueue never blocks; Dequeue suspends until an
// item arrives, the context is done, or the wait deadline passes.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{ready: make(chan struct{}, 1)}
}

func (q *queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *queue[T]) tryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return item, true
}

// Dequeue blocks until an item is available or ctx is cancelled. A non-zero
// wait bounds the block so callers can observe stop flags between polls.
func (q *queue[T]) Dequeue(ctx context.Context, wait time.Duration) (T, bool, error) {
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		if item, ok := q.tryDequeue(); ok {
			return item, true, nil
		}
		var zero T
		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case <-timeout:
			return zero, false, nil
		case <-q.ready:
		}
	}
}

func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MessageBus decouples channels from the agent core. Channels publish onto
// the inbound queue and subscribe to outbound traffic for their channel name;
// the agent loop is the sole inbound consumer, which is what preserves FIFO
// ordering per chat.
type MessageBus struct {
	inbound  *queue[*InboundMessage]
	outbound *queue[*OutboundMessage]
	mu       sync.RWMutex
	subs     map[string][]func(*OutboundMessage)
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  newQueue[*InboundMessage](),
		outbound: newQueue[*OutboundMessage](),
		subs:     make(map[string][]func(*OutboundMessage)),
		stopped:  make(chan struct{}),
	}
}

// PublishInbound enqueues a message from a channel to the agent. It never
// blocks the producer.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound.Enqueue(msg)
}

// ConsumeInbound blocks until a message is available or the context is
// cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	msg, _, err := b.inbound.Dequeue(ctx, 0)
	return msg, err
}

// PublishOutbound enqueues a response from the agent to channels.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.outbound.Enqueue(msg)
}

// ConsumeOutbound blocks until an outbound message is available or the
// context is cancelled.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (*OutboundMessage, error) {
	msg, _, err := b.outbound.Dequeue(ctx, 0)
	return msg, err
}

// SubscribeOutbound registers a delivery callback for a channel. A channel may
// have several subscribers; all of them receive each message.
func (b *MessageBus) SubscribeOutbound(channel string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = append(b.subs[channel], callback)
}

// DispatchOutbound drains the outbound queue and invokes the subscribers for
// each message's channel. One failing subscriber never prevents delivery to
// the others. Runs until the context is cancelled or Stop is called.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-b.stopped:
			return nil
		default:
		}
		msg, ok, err := b.outbound.Dequeue(ctx, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			continue
		}
		b.mu.RLock()
		callbacks := append([]func(*OutboundMessage){}, b.subs[msg.Channel]...)
		b.mu.RUnlock()
		for _, cb := range callbacks {
			b.deliver(msg, cb)
		}
	}
}

func (b *MessageBus) deliver(msg *OutboundMessage, cb func(*OutboundMessage)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Outbound subscriber panicked", "channel", msg.Channel, "panic", r)
		}
	}()
	cb(msg)
}

// Stop signals the dispatch loop to exit after its current poll.
func (b *MessageBus) Stop() {
	b.stopOnce.Do(func() { close(b.stopped) })
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return b.inbound.Len()
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return b.outbound.Len()
}
