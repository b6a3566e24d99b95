// Package events carries the out-of-band notifications the planning
// collaborator can emit between request/response round trips. The dispatcher
// is an in-process topic bus: the remote bridge and the simulation publish
// into it, the planning store subscribes.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Topic names for planning notifications. The scheme-style prefix matches
// the wire protocol of the planning collaborator.
const (
	TopicPlanGenerated      = "planning://generated"
	TopicPlanApplied        = "planning://applied"
	TopicConflictsResolved  = "planning://conflicts-resolved"
	TopicPreferencesUpdated = "planning://preferences-updated"
)

// Handler consumes one notification payload, already encoded as JSON.
// Handlers must contain their own failures; the dispatcher does not recover
// for them.
type Handler func(payload []byte)

// Bus is the subscription surface consumed by the planning store.
type Bus interface {
	// Subscribe registers a handler for a topic and returns its
	// unsubscribe function. Unsubscribing twice is harmless.
	Subscribe(topic string, h Handler) (unsubscribe func())
	// Publish encodes the payload as JSON and delivers it synchronously to
	// every current subscriber of the topic.
	Publish(topic string, payload any)
}

// Dispatcher is the in-memory Bus implementation. Safe for concurrent use.
type Dispatcher struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string]map[int]Handler)}
}

// defaultBus is the process-wide bus shared by every store consumer.
var (
	defaultBus     *Dispatcher
	defaultBusOnce sync.Once
)

// Default returns the process-wide dispatcher, creating it on first use.
func Default() *Dispatcher {
	defaultBusOnce.Do(func() {
		defaultBus = NewDispatcher()
	})
	return defaultBus
}

// Subscribe implements Bus.
func (d *Dispatcher) Subscribe(topic string, h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.next
	d.next++
	if d.subs[topic] == nil {
		d.subs[topic] = make(map[int]Handler)
	}
	d.subs[topic][id] = h

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs[topic], id)
	}
}

// Publish implements Bus. Payloads that fail to encode are logged and
// dropped; a notification must never take down the publisher.
func (d *Dispatcher) Publish(topic string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("dropping unencodable notification", "topic", topic, "error", err)
		return
	}

	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.subs[topic]))
	for _, h := range d.subs[topic] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(raw)
	}
}
