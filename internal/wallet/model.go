package wallet

import (
	"fmt"
	"time"

	"github.com/congo-pay/moneyflow/internal/money"
)

// Status is the lifecycle state of a wallet.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusFrozen Status = "FROZEN"
	StatusClosed Status = "CLOSED"
)

// Wallet is the balance aggregate of one account. Reserved funds are part of
// Balance but not available for new reservations.
type Wallet struct {
	ID        string
	AccountID string
	OwnerID   string
	Currency  string
	Balance   money.Money
	Reserved  money.Money
	Status    Status
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available is Balance minus Reserved.
func (w Wallet) Available() money.Money {
	available, err := w.Balance.Sub(w.Reserved)
	if err != nil {
		return money.Zero(w.Currency)
	}
	return available
}

// Reserve earmarks amount. Only active wallets accept new holds.
func (w *Wallet) Reserve(amount money.Money) error {
	switch w.Status {
	case StatusFrozen:
		return ErrWalletFrozen
	case StatusClosed:
		return ErrWalletClosed
	}
	if err := w.checkAmount(amount); err != nil {
		return err
	}
	available := w.Available()
	ok, err := available.GreaterThanOrEqual(amount)
	if err != nil {
		return err
	}
	if !ok {
		return &InsufficientBalanceError{Requested: amount, Available: available}
	}
	reserved, err := w.Reserved.Add(amount)
	if err != nil {
		return err
	}
	w.Reserved = reserved
	return w.check()
}

// Commit settles a hold of amount: both balance and reserved decrease.
// Frozen wallets still settle holds taken before the freeze.
func (w *Wallet) Commit(amount money.Money) error {
	if w.Status == StatusClosed {
		return ErrWalletClosed
	}
	if err := w.checkAmount(amount); err != nil {
		return err
	}
	reserved, err := w.Reserved.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: commit %s exceeds reserved %s", ErrInvariantViolation, amount, w.Reserved)
	}
	balance, err := w.Balance.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: commit %s exceeds balance %s", ErrInvariantViolation, amount, w.Balance)
	}
	w.Balance, w.Reserved = balance, reserved
	return w.check()
}

// Release drops a hold of amount without moving money.
func (w *Wallet) Release(amount money.Money) error {
	if w.Status == StatusClosed {
		return ErrWalletClosed
	}
	if err := w.checkAmount(amount); err != nil {
		return err
	}
	reserved, err := w.Reserved.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: release %s exceeds reserved %s", ErrInvariantViolation, amount, w.Reserved)
	}
	w.Reserved = reserved
	return w.check()
}

// Credit adds amount to the balance.
func (w *Wallet) Credit(amount money.Money) error {
	if w.Status == StatusClosed {
		return ErrWalletClosed
	}
	if err := w.checkAmount(amount); err != nil {
		return err
	}
	balance, err := w.Balance.Add(amount)
	if err != nil {
		return err
	}
	w.Balance = balance
	return w.check()
}

func (w *Wallet) Freeze() error {
	if w.Status != StatusActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChange, w.Status, StatusFrozen)
	}
	w.Status = StatusFrozen
	return nil
}

func (w *Wallet) Unfreeze() error {
	if w.Status != StatusFrozen {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChange, w.Status, StatusActive)
	}
	w.Status = StatusActive
	return nil
}

// Close is terminal and requires an empty wallet with no open holds.
func (w *Wallet) Close() error {
	if w.Status == StatusClosed {
		return fmt.Errorf("%w: already closed", ErrInvalidStatusChange)
	}
	if !w.Balance.IsZero() || !w.Reserved.IsZero() {
		return fmt.Errorf("%w: balance %s, reserved %s", ErrWalletNotEmpty, w.Balance, w.Reserved)
	}
	w.Status = StatusClosed
	return nil
}

func (w *Wallet) checkAmount(amount money.Money) error {
	if amount.Currency() != w.Currency {
		return fmt.Errorf("%w: wallet holds %s, got %s", money.ErrCurrencyMismatch, w.Currency, amount.Currency())
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", money.ErrInvalidAmount)
	}
	return nil
}

func (w Wallet) check() error {
	if w.Reserved.IsNegative() || w.Balance.IsNegative() {
		return fmt.Errorf("%w: negative balance %s or reserved %s", ErrInvariantViolation, w.Balance, w.Reserved)
	}
	if over, err := w.Reserved.GreaterThan(w.Balance); err != nil || over {
		return fmt.Errorf("%w: reserved %s above balance %s", ErrInvariantViolation, w.Reserved, w.Balance)
	}
	return nil
}

// ReservationStatus is OPEN until exactly one of commit or release closes it.
type ReservationStatus string

const (
	ReservationOpen      ReservationStatus = "OPEN"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// Reservation is a hold on a wallet. Closed reservations are kept with their
// terminal status.
type Reservation struct {
	ID          string            `json:"id"`
	WalletID    string            `json:"wallet_id"`
	AccountID   string            `json:"account_id"`
	Amount      money.Money       `json:"amount"`
	ReferenceID string            `json:"reference_id"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ClosedAt    *time.Time        `json:"closed_at,omitempty"`
}

func (r Reservation) closedErr() error {
	switch r.Status {
	case ReservationCommitted:
		return ErrReservationAlreadyCommitted
	case ReservationReleased:
		return ErrReservationAlreadyReleased
	default:
		return nil
	}
}
