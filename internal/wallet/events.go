package wallet

import (
	"time"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/money"
)

// Event types emitted by the engine, one per state change.
const (
	EventWalletCreated        = "WalletCreated"
	EventBalanceReserved      = "BalanceReserved"
	EventReservationCommitted = "ReservationCommitted"
	EventReservationReleased  = "ReservationReleased"
	EventBalanceChanged       = "BalanceChanged"
	EventWalletStatusChanged  = "WalletStatusChanged"
)

// outboxSource tags rows in the shared outbox table.
const outboxSource = "wallet"

type balancesPayload struct {
	Balance   money.Money `json:"balance"`
	Reserved  money.Money `json:"reserved_balance"`
	Available money.Money `json:"available_balance"`
}

type reservationPayload struct {
	AccountID     string      `json:"account_id"`
	ReservationID string      `json:"reservation_id"`
	ReferenceID   string      `json:"reference_id"`
	Amount        money.Money `json:"amount"`
	EntryID       string      `json:"entry_id,omitempty"`
	balancesPayload
}

type balanceChangedPayload struct {
	AccountID     string      `json:"account_id"`
	EntryID       string      `json:"entry_id"`
	EntryType     string      `json:"entry_type"`
	ReferenceType string      `json:"reference_type"`
	ReferenceID   string      `json:"reference_id"`
	Amount        money.Money `json:"amount"`
	balancesPayload
}

type statusPayload struct {
	AccountID string `json:"account_id"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	Reason    string `json:"reason,omitempty"`
}

func balancesOf(w Wallet) balancesPayload {
	return balancesPayload{Balance: w.Balance, Reserved: w.Reserved, Available: w.Available()}
}

func newEvent(eventType string, w Wallet, payload any, at time.Time) ([]events.Event, error) {
	e, err := events.New(eventType, w.AccountID, payload, at)
	if err != nil {
		return nil, err
	}
	return []events.Event{e}, nil
}
