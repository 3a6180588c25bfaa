package transfer

import "errors"

var (
	ErrUnauthorized        = errors.New("caller does not own the sender account")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrNotCancellable      = errors.New("transfer can no longer be cancelled")
	ErrInvalidTransition   = errors.New("invalid transfer status transition")
	ErrIdempotencyKeyReuse = errors.New("idempotency key reused with a different request")
	ErrInvalidTransfer     = errors.New("invalid transfer request")
	ErrTransferCancelled   = errors.New("transfer cancelled")
	ErrRecipientRejected   = errors.New("recipient cannot receive funds")

	ErrRailUnavailable = errors.New("rail unavailable")
	ErrRailTimeout     = errors.New("rail timeout")
	ErrRailRejected    = errors.New("rail rejected transfer")

	// Wallet port vocabulary. Adapters translate the wallet service's own
	// errors into these.
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWalletFrozen        = errors.New("wallet frozen")
	ErrWalletClosed        = errors.New("wallet closed")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyCommitted    = errors.New("reservation already committed")
	ErrAlreadyReleased     = errors.New("reservation already released")

	// ErrDuplicateIdempotencyKey is returned by repositories when the unique
	// idempotency key index rejects an insert.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	// ErrVersionConflict is returned by repositories on a stale update.
	ErrVersionConflict = errors.New("transfer version conflict")
	// ErrInternal is what callers see for anything outside the named kinds.
	ErrInternal = errors.New("internal error")
)

// errorForCode rebuilds the typed error a failed transaction was answered with.
func errorForCode(code FailureCode) error {
	switch code {
	case FailureInsufficientBalance:
		return ErrInsufficientBalance
	case FailureWalletFrozen:
		return ErrWalletFrozen
	case FailureWalletClosed:
		return ErrWalletClosed
	case FailureWalletNotFound:
		return ErrWalletNotFound
	case FailureInvalidRequest:
		return ErrInvalidTransfer
	case FailureRecipientRejected:
		return ErrRecipientRejected
	case FailureRailUnavailable:
		return ErrRailUnavailable
	case FailureRailTimeout:
		return ErrRailTimeout
	case FailureRailRejected:
		return ErrRailRejected
	default:
		return ErrInternal
	}
}

// walletFailure classifies a wallet port error. ok is false for errors outside
// the business vocabulary.
func walletFailure(err error) (code FailureCode, reason string, ok bool) {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return FailureInsufficientBalance, "Insufficient balance", true
	case errors.Is(err, ErrWalletFrozen):
		return FailureWalletFrozen, "Wallet is frozen", true
	case errors.Is(err, ErrWalletClosed):
		return FailureWalletClosed, "Wallet is closed", true
	case errors.Is(err, ErrWalletNotFound):
		return FailureWalletNotFound, "Wallet not found", true
	case errors.Is(err, ErrInvalidTransfer):
		return FailureInvalidRequest, "Invalid transfer request", true
	default:
		return FailureInternal, "Internal error", false
	}
}
