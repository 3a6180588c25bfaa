package transfer

import (
	"context"
	"errors"

	"github.com/congo-pay/moneyflow/internal/money"
)

// ReserveRequest asks the wallet service to hold funds for a transaction.
type ReserveRequest struct {
	AccountID   string
	Amount      money.Money
	ReferenceID string
}

// ReserveResponse identifies the hold that was placed.
type ReserveResponse struct {
	ReservationID string
}

// CreditRequest pays funds into an account.
type CreditRequest struct {
	AccountID   string
	Amount      money.Money
	ReferenceID string
	Description string
}

// WalletPort is the orchestrator's view of the wallet service. Calls are
// message-shaped and fail with the port errors in errors.go.
type WalletPort interface {
	Reserve(ctx context.Context, req ReserveRequest) (ReserveResponse, error)
	Commit(ctx context.Context, reservationID string) error
	Release(ctx context.Context, reservationID string) error
	Credit(ctx context.Context, req CreditRequest) error
	OwnerOf(ctx context.Context, accountID string) (string, error)
	// OpenReservation finds the open hold placed under referenceID. It fails
	// with ErrReservationNotFound when there is none.
	OpenReservation(ctx context.Context, accountID, referenceID string) (string, error)
}

// RailStatus is the outcome reported by a rail.
type RailStatus string

const (
	RailSuccess RailStatus = "SUCCESS"
	RailFailed  RailStatus = "FAILED"
)

// RailRequest is sent to an interbank rail.
type RailRequest struct {
	ReferenceNumber string
	Amount          money.Money
	Currency        string
	SourceRef       string
	DestinationRef  string
	PurposeCode     string
}

// RailResponse is the rail's answer.
type RailResponse struct {
	Status        RailStatus
	RailReference string
	Message       string
}

// Rail settles a transfer on an external network.
type Rail interface {
	Transfer(ctx context.Context, req RailRequest) (RailResponse, error)
}

// Rails maps transfer types to the rail that settles them.
type Rails map[Type]Rail

// Authorizer decides whether a caller may move money out of an account.
type Authorizer interface {
	Authorize(ctx context.Context, callerID, accountID string) error
}

// OwnerAuthorizer allows callers who own the account.
type OwnerAuthorizer struct {
	Wallets WalletPort
}

func (a OwnerAuthorizer) Authorize(ctx context.Context, callerID, accountID string) error {
	if callerID == "" {
		return ErrUnauthorized
	}
	owner, err := a.Wallets.OwnerOf(ctx, accountID)
	if errors.Is(err, ErrWalletNotFound) {
		// Unknown accounts look the same as someone else's.
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if owner != callerID {
		return ErrUnauthorized
	}
	return nil
}
