package transfer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/congo-pay/moneyflow/internal/events"
)

// MemoryRepository keeps transactions in process. It enforces the same
// idempotency-key uniqueness and version checks as the Postgres store.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]Transaction
	byKey  map[string]string
	byRef  map[string]string
	outbox *events.MemoryOutbox
}

// NewMemoryRepository builds an empty repository writing events to outbox.
func NewMemoryRepository(outbox *events.MemoryOutbox) *MemoryRepository {
	if outbox == nil {
		outbox = events.NewMemoryOutbox()
	}
	return &MemoryRepository{
		byID:   make(map[string]Transaction),
		byKey:  make(map[string]string),
		byRef:  make(map[string]string),
		outbox: outbox,
	}
}

// Outbox exposes the event queue the repository writes to.
func (r *MemoryRepository) Outbox() *events.MemoryOutbox { return r.outbox }

func (r *MemoryRepository) Create(_ context.Context, t *Transaction, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.IdempotencyKey != "" {
		if _, exists := r.byKey[t.IdempotencyKey]; exists {
			return ErrDuplicateIdempotencyKey
		}
		r.byKey[t.IdempotencyKey] = t.ID
	}
	r.byID[t.ID] = *t
	r.byRef[t.ReferenceNumber] = t.ID
	r.outbox.Append(evs...)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return Transaction{}, ErrTransferNotFound
	}
	return t, nil
}

func (r *MemoryRepository) GetByReference(ctx context.Context, referenceNumber string) (Transaction, error) {
	r.mu.RLock()
	id, ok := r.byRef[referenceNumber]
	r.mu.RUnlock()
	if !ok {
		return Transaction{}, ErrTransferNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryRepository) GetByIdempotencyKey(ctx context.Context, key string) (Transaction, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return Transaction{}, ErrTransferNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryRepository) Update(_ context.Context, t *Transaction, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[t.ID]
	if !ok {
		return ErrTransferNotFound
	}
	if current.Version != t.Version {
		return ErrVersionConflict
	}
	t.Version++
	r.byID[t.ID] = *t
	r.outbox.Append(evs...)
	return nil
}

func (r *MemoryRepository) ListStale(_ context.Context, status Status, updatedBefore time.Time, limit int) ([]Transaction, error) {
	return r.list(limit, func(t Transaction) bool {
		return t.Status == status && t.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (r *MemoryRepository) ListCompensationPending(_ context.Context, limit int) ([]Transaction, error) {
	return r.list(limit, func(t Transaction) bool { return t.CompensationPending }), nil
}

func (r *MemoryRepository) list(limit int, keep func(Transaction) bool) []Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, t := range r.byID {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
