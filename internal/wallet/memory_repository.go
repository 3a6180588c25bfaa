package wallet

import (
	"context"
	"sort"
	"sync"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/ledger"
)

// MemoryRepository keeps state in process. It is only shared within one
// process, so it serves tests and single-instance development runs.
type MemoryRepository struct {
	mu           sync.RWMutex
	wallets      map[string]Wallet // by account id
	reservations map[string]Reservation
	entries      map[string][]ledger.Entry // by wallet id, oldest first
	outbox       *events.MemoryOutbox
}

// NewMemoryRepository constructs an in-memory repository writing events to outbox.
func NewMemoryRepository(outbox *events.MemoryOutbox) *MemoryRepository {
	if outbox == nil {
		outbox = events.NewMemoryOutbox()
	}
	return &MemoryRepository{
		wallets:      make(map[string]Wallet),
		reservations: make(map[string]Reservation),
		entries:      make(map[string][]ledger.Entry),
		outbox:       outbox,
	}
}

// Outbox exposes the event queue the repository writes to.
func (r *MemoryRepository) Outbox() *events.MemoryOutbox { return r.outbox }

func (r *MemoryRepository) Create(_ context.Context, w Wallet, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.wallets[w.AccountID]; exists {
		return ErrWalletExists
	}
	r.wallets[w.AccountID] = w
	r.outbox.Append(evs...)
	return nil
}

func (r *MemoryRepository) GetByAccount(_ context.Context, accountID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[accountID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (r *MemoryRepository) GetReservation(_ context.Context, id string) (Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.reservations[id]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	return res, nil
}

func (r *MemoryRepository) FindOpenReservation(_ context.Context, walletID, referenceID string) (Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, res := range r.reservations {
		if res.WalletID == walletID && res.ReferenceID == referenceID && res.Status == ReservationOpen {
			return res, nil
		}
	}
	return Reservation{}, ErrReservationNotFound
}

func (r *MemoryRepository) FindCredit(_ context.Context, walletID, referenceID string) (ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[walletID] {
		if e.Type == ledger.Credit && e.ReferenceID == referenceID {
			return e, nil
		}
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (r *MemoryRepository) ListEntries(_ context.Context, walletID string, offset, limit int) ([]ledger.Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.entries[walletID]
	total := len(all)

	newestFirst := make([]ledger.Entry, total)
	for i, e := range all {
		newestFirst[total-1-i] = e
	}
	if offset >= total {
		return []ledger.Entry{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return newestFirst[offset:end], total, nil
}

func (r *MemoryRepository) Entries(_ context.Context, walletID string) ([]ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ledger.Entry, len(r.entries[walletID]))
	copy(out, r.entries[walletID])
	return out, nil
}

func (r *MemoryRepository) Apply(_ context.Context, m Mutation) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.wallets[m.Wallet.AccountID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	if current.Version != m.Wallet.Version {
		return Wallet{}, ErrVersionConflict
	}
	if m.CloseReservation != nil {
		stored, ok := r.reservations[m.CloseReservation.ID]
		if !ok {
			return Wallet{}, ErrReservationNotFound
		}
		if stored.Status != ReservationOpen {
			return Wallet{}, ErrVersionConflict
		}
	}
	if m.OpenReservation != nil {
		for _, res := range r.reservations {
			if res.WalletID == m.OpenReservation.WalletID && res.ReferenceID == m.OpenReservation.ReferenceID && res.Status == ReservationOpen {
				return Wallet{}, ErrVersionConflict
			}
		}
	}
	if m.Entry != nil && m.Entry.Type == ledger.Credit {
		for _, e := range r.entries[m.Entry.WalletID] {
			if e.Type == ledger.Credit && e.ReferenceID == m.Entry.ReferenceID {
				return Wallet{}, ErrVersionConflict
			}
		}
	}

	next := m.Wallet
	next.Version++
	r.wallets[next.AccountID] = next
	if m.CloseReservation != nil {
		r.reservations[m.CloseReservation.ID] = *m.CloseReservation
	}
	if m.OpenReservation != nil {
		r.reservations[m.OpenReservation.ID] = *m.OpenReservation
	}
	if m.Entry != nil {
		r.entries[m.Entry.WalletID] = append(r.entries[m.Entry.WalletID], *m.Entry)
	}
	r.outbox.Append(m.Events...)
	return next, nil
}

// OpenReservations lists open holds of a wallet ordered by creation time.
func (r *MemoryRepository) OpenReservations(walletID string) []Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Reservation
	for _, res := range r.reservations {
		if res.WalletID == walletID && res.Status == ReservationOpen {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
