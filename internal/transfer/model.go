package transfer

import (
	"fmt"
	"time"

	"github.com/congo-pay/moneyflow/internal/money"
)

// Type selects how a transfer settles.
type Type string

const (
	TypeInternal Type = "INTERNAL"
	TypeBIFast   Type = "BI_FAST"
	TypeSKN      Type = "SKN"
	TypeRTGS     Type = "RTGS"
)

// Valid reports whether t is a known transfer type.
func (t Type) Valid() bool {
	switch t {
	case TypeInternal, TypeBIFast, TypeSKN, TypeRTGS:
		return true
	}
	return false
}

// External reports whether the type settles through an interbank rail.
func (t Type) External() bool { return t != TypeInternal }

// Status is the saga state of a transaction.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusValidating Status = "VALIDATING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusValidating, StatusFailed, StatusCancelled},
	StatusValidating: {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no exits.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Cancellable reports whether a caller may still cancel; the rail has not been called yet.
func (s Status) Cancellable() bool { return CanTransition(s, StatusCancelled) }

// FailureCode classifies why a transaction failed. It is persisted so replays
// can return the same typed error the first call returned.
type FailureCode string

const (
	FailureNone                FailureCode = ""
	FailureInsufficientBalance FailureCode = "INSUFFICIENT_BALANCE"
	FailureWalletFrozen        FailureCode = "WALLET_FROZEN"
	FailureWalletClosed        FailureCode = "WALLET_CLOSED"
	FailureWalletNotFound      FailureCode = "WALLET_NOT_FOUND"
	FailureInvalidRequest      FailureCode = "INVALID_REQUEST"
	FailureRecipientRejected   FailureCode = "RECIPIENT_REJECTED"
	FailureRailUnavailable     FailureCode = "RAIL_UNAVAILABLE"
	FailureRailTimeout         FailureCode = "RAIL_TIMEOUT"
	FailureRailRejected        FailureCode = "RAIL_REJECTED"
	FailureStale               FailureCode = "STALE"
	FailureInternal            FailureCode = "INTERNAL"
)

// Transaction is one money movement driven by the orchestrator.
type Transaction struct {
	ID                     string      `json:"id"`
	ReferenceNumber        string      `json:"reference_number"`
	SenderAccountID        string      `json:"sender_account_id"`
	RecipientAccountNumber string      `json:"recipient_account_number"`
	Amount                 money.Money `json:"amount"`
	Description            string      `json:"description,omitempty"`
	PurposeCode            string      `json:"purpose_code,omitempty"`
	Type                   Type        `json:"type"`
	Status                 Status      `json:"status"`
	FailureCode            FailureCode `json:"failure_code,omitempty"`
	FailureReason          string      `json:"failure_reason,omitempty"`
	IdempotencyKey         string      `json:"-"`
	RequestHash            string      `json:"-"`
	ReservationID          string      `json:"reservation_id,omitempty"`
	RailReference          string      `json:"rail_reference,omitempty"`
	CompensationPending    bool        `json:"compensation_pending"`
	Version                int64       `json:"version"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
	CompletedAt            *time.Time  `json:"completed_at,omitempty"`
}

// TransitionTo moves the transaction along the transition table.
func (t *Transaction) TransitionTo(next Status, at time.Time) error {
	if !CanTransition(t.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = at
	if next.Terminal() {
		t.CompletedAt = &at
	}
	return nil
}

// Fail moves the transaction to FAILED with a code and a human-readable reason.
func (t *Transaction) Fail(code FailureCode, reason string, at time.Time) error {
	if err := t.TransitionTo(StatusFailed, at); err != nil {
		return err
	}
	t.FailureCode = code
	t.FailureReason = reason
	return nil
}
