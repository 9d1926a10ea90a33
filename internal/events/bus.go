// Package events provides the notification bus for configuration changes.
// Subscribers observe what the reconfiguration scheduler did (base reloads,
// accepted and dropped on-demand requests, verbose overrides) without
// polling the controller's change-detection queries.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all config-plane events.
type Event interface {
	EventType() string
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"timestamp"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBaseEvent(eventType string) BaseEvent {
	return BaseEvent{Type: eventType, Time: time.Now()}
}

type subscriber struct {
	ch    chan Event
	types map[string]bool // empty means all types
}

// Bus is a pub/sub fan-out with drop-on-full backpressure. The scheduler
// must never block on a slow subscriber, so full buffers shed the oldest
// event rather than stalling the publish.
type Bus struct {
	mu         sync.RWMutex
	subs       []*subscriber
	bufferSize int
	dropped    atomic.Int64
	closed     bool
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers for specific event types; none means all events.
func (b *Bus) Subscribe(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subs[:0]
	for _, sub := range b.subs {
		if sub.ch != ch {
			kept = append(kept, sub)
		} else {
			close(sub.ch)
		}
	}
	b.subs = kept
}

// Publish fans an event out to all matching subscribers. A full subscriber
// buffer sheds its oldest event to make room.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	eventType := event.EventType()
	for _, sub := range b.subs {
		if len(sub.types) != 0 && !sub.types[eventType] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			select {
			case <-sub.ch:
				b.dropped.Add(1)
			default:
			}
			select {
			case sub.ch <- event:
			default:
				b.dropped.Add(1)
			}
		}
	}
}

// DroppedCount returns the total number of shed events.
func (b *Bus) DroppedCount() int64 {
	return b.dropped.Load()
}

// Close closes the bus and every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
