package events

import (
	"context"
	"sync"
)

// MemoryOutbox keeps events in process. Memory repositories append to it while
// holding their own lock so the event order matches the write order.
type MemoryOutbox struct {
	mu        sync.Mutex
	events    []Event
	published map[string]bool
}

// NewMemoryOutbox builds an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{published: make(map[string]bool)}
}

// Append enqueues events.
func (o *MemoryOutbox) Append(events ...Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
}

func (o *MemoryOutbox) Pending(_ context.Context, limit int) ([]Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Event
	for _, e := range o.events {
		if o.published[e.ID] {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *MemoryOutbox) MarkPublished(_ context.Context, ids []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.published[id] = true
	}
	return nil
}

// All returns every event ever appended, published or not.
func (o *MemoryOutbox) All() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Event, len(o.events))
	copy(out, o.events)
	return out
}

// OfType filters All by event type.
func (o *MemoryOutbox) OfType(eventType string) []Event {
	var out []Event
	for _, e := range o.All() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
