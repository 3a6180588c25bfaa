// Package walletclient adapts the wallet engine to the transfer
// orchestrator's wallet port.
package walletclient

import (
	"context"
	"errors"

	"github.com/congo-pay/moneyflow/internal/ledger"
	"github.com/congo-pay/moneyflow/internal/money"
	"github.com/congo-pay/moneyflow/internal/transfer"
	"github.com/congo-pay/moneyflow/internal/wallet"
)

// Local calls an in-process engine through the port's request shapes. It
// keeps the orchestrator blind to wallet internals: only port requests go in
// and only port errors come out.
type Local struct {
	engine *wallet.Engine
}

var _ transfer.WalletPort = (*Local)(nil)

// NewLocal wraps an engine.
func NewLocal(engine *wallet.Engine) *Local {
	return &Local{engine: engine}
}

func (l *Local) Reserve(ctx context.Context, req transfer.ReserveRequest) (transfer.ReserveResponse, error) {
	res, err := l.engine.Reserve(ctx, req.AccountID, req.Amount, req.ReferenceID)
	if err != nil {
		return transfer.ReserveResponse{}, translate(err)
	}
	return transfer.ReserveResponse{ReservationID: res.ID}, nil
}

func (l *Local) Commit(ctx context.Context, reservationID string) error {
	_, err := l.engine.CommitReservation(ctx, reservationID)
	return translate(err)
}

func (l *Local) Release(ctx context.Context, reservationID string) error {
	return translate(l.engine.ReleaseReservation(ctx, reservationID))
}

// Credit pays into the recipient. A credit already applied for the same
// reference counts as success.
func (l *Local) Credit(ctx context.Context, req transfer.CreditRequest) error {
	_, err := l.engine.Credit(ctx, wallet.CreditInput{
		AccountID:     req.AccountID,
		Amount:        req.Amount,
		ReferenceID:   req.ReferenceID,
		ReferenceType: ledger.ReferenceTransfer,
		Description:   req.Description,
	})
	if errors.Is(err, wallet.ErrDuplicateCredit) {
		return nil
	}
	return translate(err)
}

func (l *Local) OwnerOf(ctx context.Context, accountID string) (string, error) {
	w, err := l.engine.GetWallet(ctx, accountID)
	if err != nil {
		return "", translate(err)
	}
	return w.OwnerID, nil
}

func (l *Local) OpenReservation(ctx context.Context, accountID, referenceID string) (string, error) {
	res, err := l.engine.FindOpenReservation(ctx, accountID, referenceID)
	if err != nil {
		return "", translate(err)
	}
	return res.ID, nil
}

// portError matches both the port sentinel and the wallet error it came from.
type portError struct {
	port  error
	cause error
}

func (e *portError) Error() string   { return e.cause.Error() }
func (e *portError) Unwrap() []error { return []error{e.port, e.cause} }

var mapping = []struct {
	from error
	to   error
}{
	{wallet.ErrInsufficientBalance, transfer.ErrInsufficientBalance},
	{wallet.ErrWalletFrozen, transfer.ErrWalletFrozen},
	{wallet.ErrWalletClosed, transfer.ErrWalletClosed},
	{wallet.ErrWalletNotFound, transfer.ErrWalletNotFound},
	{wallet.ErrReservationAlreadyCommitted, transfer.ErrAlreadyCommitted},
	{wallet.ErrReservationAlreadyReleased, transfer.ErrAlreadyReleased},
	{wallet.ErrReservationNotFound, transfer.ErrReservationNotFound},
	{wallet.ErrReferenceConflict, transfer.ErrInvalidTransfer},
	{wallet.ErrInvalidRequest, transfer.ErrInvalidTransfer},
	{money.ErrInvalidAmount, transfer.ErrInvalidTransfer},
	{money.ErrCurrencyMismatch, transfer.ErrInvalidTransfer},
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range mapping {
		if errors.Is(err, m.from) {
			return &portError{port: m.to, cause: err}
		}
	}
	return err
}
