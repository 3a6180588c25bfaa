package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured logger. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a logging publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("event", "event_id", event.ID, "event_type", event.Type, "aggregate_id", event.AggregateID, "payload", string(event.Payload))
	return nil
}
