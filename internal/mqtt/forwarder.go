// Package mqtt publishes scheduler and session events to an MQTT broker so home
// automation can follow the wake light.
package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/jmylchreest/wakelightd/internal/events"
)

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// Forwarder copies bus events to a Publisher. Events are queued so a slow or
// unreachable broker never holds up the scheduler; a full queue drops events.
type Forwarder struct {
	pub     Publisher
	topics  Topics
	qos     byte
	queue   chan message
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewForwarder creates a forwarder buffering up to queueSize messages
func NewForwarder(pub Publisher, topics Topics, qos byte, queueSize int, logger *slog.Logger) *Forwarder {
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		pub:    pub,
		topics: topics,
		qos:    qos,
		queue:  make(chan message, queueSize),
		logger: logger,
	}
}

// Attach subscribes the forwarder to bus and returns the unsubscribe function
func (f *Forwarder) Attach(bus *events.Bus) func() {
	return bus.Subscribe(f.Handle)
}

// Dropped returns the number of messages lost to a full queue
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Handle queues an event for publishing. It never blocks.
func (f *Forwarder) Handle(e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		f.logger.Warn("mqtt: failed to encode event", "type", e.Type, "error", err)
		return
	}

	f.enqueue(message{topic: f.topics.Event(e.Type), payload: payload})
	if e.Type.IsSession() {
		f.enqueue(message{topic: f.topics.Session(), retained: true, payload: payload})
	}
}

func (f *Forwarder) enqueue(m message) {
	select {
	case f.queue <- m:
	default:
		n := f.dropped.Add(1)
		f.logger.Warn("mqtt: queue full, dropping message", "topic", m.topic, "dropped", n)
	}
}

// Run publishes queued messages until ctx ends, then flushes what is still queued
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case m := <-f.queue:
			f.publish(m)
		case <-ctx.Done():
			for {
				select {
				case m := <-f.queue:
					f.publish(m)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) publish(m message) {
	if err := f.pub.Publish(m.topic, f.qos, m.retained, m.payload); err != nil {
		f.logger.Warn("mqtt: publish failed", "topic", m.topic, "error", err)
	}
}
