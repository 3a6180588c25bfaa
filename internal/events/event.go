package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event written to the outbox together with the state change
// that produced it.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// New marshals payload into a fresh event.
func New(eventType, aggregateID string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     raw,
		OccurredAt:  at.UTC(),
	}, nil
}

// Publisher delivers events downstream. Delivery is at-least-once; consumers
// dedupe on Event.ID.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Outbox is the durable queue of events not yet handed to a Publisher.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Signal wakes a relay after new events were written.
type Signal interface {
	Notify()
}

// NopSignal ignores notifications; the relay still picks events up on its next tick.
type NopSignal struct{}

func (NopSignal) Notify() {}
