package walletclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/moneyflow/internal/logging"
	"github.com/congo-pay/moneyflow/internal/money"
	"github.com/congo-pay/moneyflow/internal/transfer"
	"github.com/congo-pay/moneyflow/internal/wallet"
)

func newClient(t *testing.T) (*Local, *wallet.Engine) {
	t.Helper()
	e := wallet.NewEngine(wallet.NewMemoryRepository(nil), logging.Discard())
	ctx := context.Background()
	for _, acc := range []string{"a", "b"} {
		_, err := e.CreateWallet(ctx, wallet.CreateInput{AccountID: acc, OwnerID: "owner-" + acc})
		require.NoError(t, err)
	}
	_, err := wallet.SeedBalance(ctx, e, "a", money.MustOf("100", "IDR"))
	require.NoError(t, err)
	return NewLocal(e), e
}

func TestLocalTranslatesBusinessErrors(t *testing.T) {
	c, e := newClient(t)
	ctx := context.Background()

	_, err := c.Reserve(ctx, transfer.ReserveRequest{AccountID: "a", Amount: money.MustOf("500", "IDR"), ReferenceID: "t1"})
	assert.ErrorIs(t, err, transfer.ErrInsufficientBalance)
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	_, err = c.Reserve(ctx, transfer.ReserveRequest{AccountID: "zzz", Amount: money.MustOf("1", "IDR"), ReferenceID: "t1"})
	assert.ErrorIs(t, err, transfer.ErrWalletNotFound)

	_, err = c.Reserve(ctx, transfer.ReserveRequest{AccountID: "a", Amount: money.MustOf("1", "USD"), ReferenceID: "t1"})
	assert.ErrorIs(t, err, transfer.ErrInvalidTransfer)

	_, err = e.Freeze(ctx, "a", "test")
	require.NoError(t, err)
	_, err = c.Reserve(ctx, transfer.ReserveRequest{AccountID: "a", Amount: money.MustOf("1", "IDR"), ReferenceID: "t2"})
	assert.ErrorIs(t, err, transfer.ErrWalletFrozen)
}

func TestLocalReservationLifecycle(t *testing.T) {
	c, e := newClient(t)
	ctx := context.Background()

	resp, err := c.Reserve(ctx, transfer.ReserveRequest{AccountID: "a", Amount: money.MustOf("30", "IDR"), ReferenceID: "t1"})
	require.NoError(t, err)
	require.NoError(t, c.Commit(ctx, resp.ReservationID))
	assert.ErrorIs(t, c.Commit(ctx, resp.ReservationID), transfer.ErrAlreadyCommitted)
	assert.ErrorIs(t, c.Release(ctx, resp.ReservationID), transfer.ErrAlreadyCommitted)
	assert.ErrorIs(t, c.Release(ctx, "missing"), transfer.ErrReservationNotFound)

	second, err := c.Reserve(ctx, transfer.ReserveRequest{AccountID: "a", Amount: money.MustOf("10", "IDR"), ReferenceID: "t2"})
	require.NoError(t, err)
	require.NoError(t, c.Release(ctx, second.ReservationID))
	assert.ErrorIs(t, c.Release(ctx, second.ReservationID), transfer.ErrAlreadyReleased)

	balance, err := e.GetBalance(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "70.00", balance.StringFixed())
}

func TestLocalCreditIsIdempotent(t *testing.T) {
	c, e := newClient(t)
	ctx := context.Background()
	req := transfer.CreditRequest{AccountID: "b", Amount: money.MustOf("12.5", "IDR"), ReferenceID: "tx-9", Description: "transfer"}

	require.NoError(t, c.Credit(ctx, req))
	require.NoError(t, c.Credit(ctx, req))

	balance, err := e.GetBalance(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "12.50", balance.StringFixed())

	owner, err := c.OwnerOf(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "owner-b", owner)
}

func TestLocalOpenReservation(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	_, err := c.OpenReservation(ctx, "a", "t1")
	assert.ErrorIs(t, err, transfer.ErrReservationNotFound)

	resp, err := c.Reserve(ctx, transfer.ReserveRequest{AccountID: "a", Amount: money.MustOf("30", "IDR"), ReferenceID: "t1"})
	require.NoError(t, err)
	id, err := c.OpenReservation(ctx, "a", "t1")
	require.NoError(t, err)
	assert.Equal(t, resp.ReservationID, id)

	require.NoError(t, c.Release(ctx, id))
	_, err = c.OpenReservation(ctx, "a", "t1")
	assert.ErrorIs(t, err, transfer.ErrReservationNotFound)

	_, err = c.OpenReservation(ctx, "zzz", "t1")
	assert.ErrorIs(t, err, transfer.ErrWalletNotFound)
}
