package bus

import (
	"sync"
	"testing"
	"time"
)

func TestEventBus_PublishSync(t *testing.T) {
	b := NewEventBus()

	var mu sync.Mutex
	var got []Event
	b.Subscribe(EventTypeTurnCompleted, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	b.PublishSync(Event{Type: EventTypeTurnCompleted, Data: map[string]any{"user_id": "alice"}})
	b.PublishSync(Event{Type: EventTypeTurnStarted})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Data["user_id"] != "alice" {
		t.Errorf("unexpected event data: %v", got[0].Data)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	b := NewEventBus()

	var count int
	var mu sync.Mutex
	cancel := b.Subscribe(EventTypeWakeDetected, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.PublishSync(Event{Type: EventTypeWakeDetected})
	cancel()
	b.PublishSync(Event{Type: EventTypeWakeDetected})

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestEventBus_SubscribeMultiple(t *testing.T) {
	b := NewEventBus()

	var mu sync.Mutex
	seen := make(map[EventType]int)
	cancel := b.SubscribeMultiple(AllEventTypes, func(e Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	for _, et := range AllEventTypes {
		b.PublishSync(Event{Type: et})
	}

	mu.Lock()
	if len(seen) != len(AllEventTypes) {
		t.Errorf("expected all %d types delivered, got %d", len(AllEventTypes), len(seen))
	}
	mu.Unlock()

	cancel()
	b.PublishSync(Event{Type: EventTypeTurnStarted})

	mu.Lock()
	defer mu.Unlock()
	if seen[EventTypeTurnStarted] != 1 {
		t.Errorf("expected no delivery after cancel, got %d", seen[EventTypeTurnStarted])
	}
}

func TestEventBus_PublishAsync(t *testing.T) {
	b := NewEventBus()

	done := make(chan struct{})
	b.Subscribe(EventTypeSpeechCached, func(Event) { close(done) })

	b.Publish(Event{Type: EventTypeSpeechCached})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}
