package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InboundMessage asks an agent to run one turn.
type InboundMessage struct {
	RequestID string
	Content   string
	ImageURLs []string
	AudioURLs []string
	VideoURLs []string
}

// OutboundMessage is the outcome of one turn. Error is set instead of
// Content when the turn failed.
type OutboundMessage struct {
	RequestID  string
	TurnID     string
	Content    string
	Error      string
	DidCompact bool
}

const (
	DefaultCapacity = 100
	publishTimeout  = 100 * time.Millisecond
)

// MessageBus queues turn requests for a single consumer, which makes that
// consumer the only writer of the agent's working context. Publishing waits
// briefly for room and then drops the message, counting the drop.
type MessageBus struct {
	mu     sync.RWMutex
	closed bool

	inbound  queue[InboundMessage]
	outbound queue[OutboundMessage]
}

type queue[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

func NewMessageBus() *MessageBus {
	return NewMessageBusWithCapacity(DefaultCapacity)
}

// NewMessageBusWithCapacity sizes both queues; values below 1 become 1.
func NewMessageBusWithCapacity(capacity int) *MessageBus {
	if capacity < 1 {
		capacity = 1
	}
	mb := &MessageBus{}
	mb.inbound.ch = make(chan InboundMessage, capacity)
	mb.outbound.ch = make(chan OutboundMessage, capacity)
	return mb
}

// PublishInbound reports whether the request was queued.
func (mb *MessageBus) PublishInbound(msg InboundMessage) bool {
	return publish(mb, &mb.inbound, msg)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return receive(ctx, mb.inbound.ch)
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) bool {
	return publish(mb, &mb.outbound, msg)
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return receive(ctx, mb.outbound.ch)
}

// Close closes both queues. Later publishes are ignored and receivers drain
// what is left before seeing ok=false.
func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound.ch)
	close(mb.outbound.ch)
}

func (mb *MessageBus) DroppedInbound() uint64  { return mb.inbound.dropped.Load() }
func (mb *MessageBus) DroppedOutbound() uint64 { return mb.outbound.dropped.Load() }

func publish[T any](mb *MessageBus, q *queue[T], msg T) bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return false
	}

	select {
	case q.ch <- msg:
		return true
	default:
	}
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case q.ch <- msg:
		return true
	case <-timer.C:
		q.dropped.Add(1)
		return false
	}
}

func receive[T any](ctx context.Context, ch <-chan T) (T, bool) {
	var zero T
	select {
	case msg, ok := <-ch:
		if !ok {
			return zero, false
		}
		return msg, true
	case <-ctx.Done():
		return zero, false
	}
}
