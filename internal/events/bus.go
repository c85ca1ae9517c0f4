// Package events provides an in-process event bus for broadcasting scheduler
// and wake session changes to subscribers such as the MQTT status publisher.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	// Scheduler events
	DayPlanned EventType = "scheduler.day_planned"
	DayIdle    EventType = "scheduler.day_idle"

	// Session events
	SessionStarted   EventType = "session.started"
	SessionCompleted EventType = "session.completed"
	SessionCancelled EventType = "session.cancelled"
	SessionFailed    EventType = "session.failed"
)

// IsSession reports whether the event belongs to a wake session rather than to a day.
func (t EventType) IsSession() bool {
	switch t {
	case SessionStarted, SessionCompleted, SessionCancelled, SessionFailed:
		return true
	}
	return false
}

// SessionInfo is the payload of scheduler and session events.
// Day-level events carry only Day; ID, Start and End are set once a window exists.
type SessionInfo struct {
	ID    string    `json:"id,omitempty"`
	Day   string    `json:"day"`
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
	Error string    `json:"error,omitempty"`
}

// Event is a single event emitted by a producer.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates an Event, marshaling data to JSON.
// If marshaling fails the Data field is set to null.
func NewEvent(t EventType, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      raw,
	}
}

// Session decodes the event payload as SessionInfo.
func (e Event) Session() (SessionInfo, error) {
	var info SessionInfo
	err := json.Unmarshal(e.Data, &info)
	return info, err
}

// SubscriberFunc is a callback invoked for each event.
// Implementations must not block; slow subscribers should buffer internally.
type SubscriberFunc func(Event)

// Bus is a synchronous fan-out event bus.
// Publishing blocks until all subscribers have been called, so subscribers
// should be fast (e.g., write to a channel). A nil *Bus discards events.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]SubscriberFunc
	nextID      int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[int]SubscriberFunc),
	}
}

// Subscribe registers a callback and returns an unsubscribe function.
func (b *Bus) Subscribe(fn SubscriberFunc) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// Publish sends an event to all current subscribers.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	// callbacks run outside the lock so they may subscribe or unsubscribe
	b.mu.RLock()
	subs := make([]SubscriberFunc, 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
