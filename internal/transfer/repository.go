package transfer

import (
	"context"
	"time"

	"github.com/congo-pay/moneyflow/internal/events"
)

// Repository persists transactions. Update is a compare-and-swap on Version
// and bumps it on success; events are written atomically with the row.
type Repository interface {
	Create(ctx context.Context, t *Transaction, evs ...events.Event) error
	Get(ctx context.Context, id string) (Transaction, error)
	GetByReference(ctx context.Context, referenceNumber string) (Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Transaction, error)
	Update(ctx context.Context, t *Transaction, evs ...events.Event) error
	ListStale(ctx context.Context, status Status, updatedBefore time.Time, limit int) ([]Transaction, error)
	ListCompensationPending(ctx context.Context, limit int) ([]Transaction, error)
}
