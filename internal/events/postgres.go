package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOutbox reads the outbox_events table shared by every writer.
type PostgresOutbox struct {
	db *pgxpool.Pool
}

// NewPostgresOutbox constructs a Postgres-backed outbox reader.
func NewPostgresOutbox(db *pgxpool.Pool) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

// InsertTx writes events inside the caller's transaction.
func InsertTx(ctx context.Context, tx pgx.Tx, source string, events ...Event) error {
	for _, e := range events {
		if _, err := tx.Exec(ctx, `INSERT INTO outbox_events (id, source, event_type, aggregate_id, payload, occurred_at)
            VALUES ($1, $2, $3, $4, $5, $6)`, e.ID, source, e.Type, e.AggregateID, string(e.Payload), e.OccurredAt); err != nil {
			return fmt.Errorf("insert outbox event %s: %w", e.Type, err)
		}
	}
	return nil
}

func (o *PostgresOutbox) Pending(ctx context.Context, limit int) ([]Event, error) {
	rows, err := o.db.Query(ctx, `SELECT id, event_type, aggregate_id, payload::text, occurred_at
        FROM outbox_events WHERE published_at IS NULL ORDER BY seq LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload string
		if err := rows.Scan(&e.ID, &e.Type, &e.AggregateID, &payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		e.OccurredAt = e.OccurredAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (o *PostgresOutbox) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := o.db.Exec(ctx, `UPDATE outbox_events SET published_at = NOW() WHERE id = ANY($1)`, ids)
	return err
}
