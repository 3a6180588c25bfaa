package wallet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/moneyflow/internal/money"
)

func idr(v string) money.Money { return money.MustOf(v, "IDR") }

func funded(balance, reserved string) Wallet {
	return Wallet{AccountID: "acc", Currency: "IDR", Balance: idr(balance), Reserved: idr(reserved), Status: StatusActive}
}

func TestWalletReserveRespectsAvailability(t *testing.T) {
	w := funded("100", "30")

	err := w.Reserve(idr("80"))
	var insufficient *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "70.00", insufficient.Available.StringFixed())
	assert.Equal(t, "80.00", insufficient.Requested.StringFixed())

	require.NoError(t, w.Reserve(idr("70")))
	assert.True(t, w.Available().IsZero())
}

func TestWalletRejectsBadAmounts(t *testing.T) {
	w := funded("100", "0")
	assert.ErrorIs(t, w.Reserve(money.MustOf("1", "USD")), money.ErrCurrencyMismatch)
	assert.ErrorIs(t, w.Reserve(idr("0")), money.ErrInvalidAmount)
	assert.ErrorIs(t, w.Credit(idr("-5")), money.ErrInvalidAmount)
}

func TestWalletStatusRules(t *testing.T) {
	w := funded("100", "40")
	require.NoError(t, w.Freeze())

	assert.ErrorIs(t, w.Reserve(idr("1")), ErrWalletFrozen)
	// Holds taken before the freeze still settle.
	require.NoError(t, w.Commit(idr("40")))
	require.NoError(t, w.Credit(idr("5")))
	assert.Equal(t, "65.00", w.Balance.StringFixed())

	assert.ErrorIs(t, w.Freeze(), ErrInvalidStatusChange)
	require.NoError(t, w.Unfreeze())

	assert.ErrorIs(t, w.Close(), ErrWalletNotEmpty)
	empty := funded("0", "0")
	require.NoError(t, empty.Close())
	assert.ErrorIs(t, empty.Reserve(idr("1")), ErrWalletClosed)
	assert.ErrorIs(t, empty.Credit(idr("1")), ErrWalletClosed)
}

func TestWalletCommitAndReleaseKeepInvariant(t *testing.T) {
	w := funded("100", "40")

	require.NoError(t, w.Commit(idr("40")))
	assert.Equal(t, "60.00", w.Balance.StringFixed())
	assert.True(t, w.Reserved.IsZero())

	assert.ErrorIs(t, w.Release(idr("1")), ErrInvariantViolation)
	assert.ErrorIs(t, w.Commit(idr("1")), ErrInvariantViolation)
}
