package events

import (
	"context"
	"log/slog"
	"time"
)

const defaultBatchSize = 100

// Relay moves events from an Outbox to a Publisher. Events are published in
// outbox order; a failed publish stops the batch so ordering per aggregate is kept.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batch     int
	wake      chan struct{}
}

// NewRelay builds a relay polling every interval.
func NewRelay(outbox Outbox, publisher Publisher, logger *slog.Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batch:     defaultBatchSize,
		wake:      make(chan struct{}, 1),
	}
}

// Notify requests an immediate flush without blocking the caller.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Flush publishes pending events until the outbox is drained or a publish fails.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		pending, err := r.outbox.Pending(ctx, r.batch)
		if err != nil {
			return total, err
		}
		if len(pending) == 0 {
			return total, nil
		}

		done := make([]string, 0, len(pending))
		var publishErr error
		for _, e := range pending {
			if publishErr = r.publisher.Publish(ctx, e); publishErr != nil {
				r.logger.Warn("publish event failed", "event_id", e.ID, "event_type", e.Type, "error", publishErr)
				break
			}
			done = append(done, e.ID)
		}

		if err := r.outbox.MarkPublished(ctx, done); err != nil {
			return total, err
		}
		total += len(done)

		if publishErr != nil {
			return total, publishErr
		}
		if len(pending) < r.batch {
			return total, nil
		}
	}
}

// Run flushes on every tick and on Notify until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if n, err := r.Flush(ctx); err != nil {
			r.logger.Warn("outbox flush incomplete", "published", n, "error", err)
		} else if n > 0 {
			r.logger.Debug("outbox flushed", "published", n)
		}
	}
}
