package wallet

import (
	"errors"
	"fmt"

	"github.com/congo-pay/moneyflow/internal/money"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletFrozen   = errors.New("wallet frozen")
	ErrWalletClosed   = errors.New("wallet closed")
	ErrWalletNotEmpty = errors.New("wallet not empty")

	// ErrInsufficientBalance is matched by *InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationClosed is wrapped by the two terminal-state errors below, so
	// callers can tell "never existed" from "already settled".
	ErrReservationClosed           = errors.New("reservation closed")
	ErrReservationAlreadyCommitted = fmt.Errorf("%w: already committed", ErrReservationClosed)
	ErrReservationAlreadyReleased  = fmt.Errorf("%w: already released", ErrReservationClosed)

	// ErrReferenceConflict is returned when an open reservation for the same
	// reference holds a different amount.
	ErrReferenceConflict = errors.New("reference already used with a different amount")

	// ErrDuplicateCredit is returned alongside the original entry when a credit
	// reference was already applied.
	ErrDuplicateCredit = errors.New("duplicate credit reference")

	ErrInvalidRequest      = errors.New("invalid wallet request")
	ErrInvalidStatusChange = errors.New("invalid wallet status change")
	ErrInvariantViolation  = errors.New("wallet invariant violated")

	// ErrVersionConflict is returned by repositories when the optimistic
	// version check fails. The engine retries on it.
	ErrVersionConflict = errors.New("wallet version conflict")
	// ErrConcurrentModification is returned when the retry budget runs out.
	ErrConcurrentModification = errors.New("concurrent modification, retries exhausted")
)

// InsufficientBalanceError carries the requested and available amounts.
type InsufficientBalanceError struct {
	Requested money.Money
	Available money.Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s", e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
