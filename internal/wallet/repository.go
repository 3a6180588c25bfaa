package wallet

import (
	"context"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/ledger"
)

// Mutation is everything one engine operation writes. Repositories apply it
// atomically: the wallet row is updated only if its stored version still equals
// Wallet.Version, and a closing reservation only if it is still OPEN.
type Mutation struct {
	Wallet           Wallet
	OpenReservation  *Reservation
	CloseReservation *Reservation
	Entry            *ledger.Entry
	Events           []events.Event
}

// Repository persists wallets, the reservation registry, ledger entries and
// the outbox. Implementations must be shared by every engine instance.
type Repository interface {
	Create(ctx context.Context, w Wallet, evs ...events.Event) error
	GetByAccount(ctx context.Context, accountID string) (Wallet, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	FindOpenReservation(ctx context.Context, walletID, referenceID string) (Reservation, error)
	FindCredit(ctx context.Context, walletID, referenceID string) (ledger.Entry, error)
	ListEntries(ctx context.Context, walletID string, offset, limit int) ([]ledger.Entry, int, error)
	Entries(ctx context.Context, walletID string) ([]ledger.Entry, error)
	// Apply returns the stored wallet with its new version, or ErrVersionConflict.
	Apply(ctx context.Context, m Mutation) (Wallet, error)
}
