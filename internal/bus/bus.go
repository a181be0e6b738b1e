// Package bus provides an internal event bus for pipeline observers.
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for the dialogue pipeline
const (
	// Turn lifecycle
	EventTypeTurnStarted   EventType = "turn.started"
	EventTypeTurnCompleted EventType = "turn.completed"
	EventTypeTurnFailed    EventType = "turn.failed"

	// Speech input
	EventTypeTranscript   EventType = "speech.transcript"
	EventTypeWakeDetected EventType = "wake.detected"

	// Synthesis
	EventTypeSpeechCached      EventType = "tts.cached"
	EventTypeSpeechSynthesized EventType = "tts.synthesized"

	// Sessions
	EventTypeSessionCleared EventType = "session.cleared"
)

// AllEventTypes lists every published event type, for observers that
// want the full stream.
var AllEventTypes = []EventType{
	EventTypeTurnStarted,
	EventTypeTurnCompleted,
	EventTypeTurnFailed,
	EventTypeTranscript,
	EventTypeWakeDetected,
	EventTypeSpeechCached,
	EventTypeSpeechSynthesized,
	EventTypeSessionCleared,
}

// Event represents a bus event
type Event struct {
	Type EventType      `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles events
type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType][]subscription
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe adds a handler for an event type and returns a function
// that removes it again. Unsubscribing matters for transient observers
// like websocket connections.
func (b *EventBus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeMultiple adds a handler for multiple event types and
// returns a function that removes all of them.
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) func() {
	cancels := make([]func(), 0, len(eventTypes))
	for _, et := range eventTypes {
		cancels = append(cancels, b.Subscribe(et, handler))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Publish sends an event to all subscribed handlers without blocking
// the publisher.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type]))
	copy(subs, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		go s.handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type]))
	copy(subs, b.handlers[event.Type])
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(s.handler)
	}
	wg.Wait()
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]subscription)
}
