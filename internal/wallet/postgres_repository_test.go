package wallet

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/infra/pgtest"
	"github.com/congo-pay/moneyflow/internal/ledger"
	"github.com/congo-pay/moneyflow/internal/logging"
)

func TestPostgresRepositoryEngineFlow(t *testing.T) {
	pool := pgtest.Start(t)
	repo := NewPostgresRepository(pool)
	e := NewEngine(repo, logging.Discard(), WithMaxRetries(10_000), WithBackoff(200*time.Microsecond))
	ctx := context.Background()

	account := "pg-" + uuid.NewString()
	w, err := e.CreateWallet(ctx, CreateInput{AccountID: account, OwnerID: "owner-1", Currency: "IDR"})
	require.NoError(t, err)
	_, err = e.CreateWallet(ctx, CreateInput{AccountID: account, OwnerID: "owner-1"})
	assert.ErrorIs(t, err, ErrWalletExists)

	_, err = SeedBalance(ctx, e, account, idr("100.00"))
	require.NoError(t, err)

	res, err := e.Reserve(ctx, account, idr("40.00"), "ref1")
	require.NoError(t, err)
	again, err := e.Reserve(ctx, account, idr("40.00"), "ref1")
	require.NoError(t, err)
	assert.Equal(t, res.ID, again.ID)

	entry, err := e.CommitReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", entry.BalanceAfter.StringFixed())

	_, err = e.CommitReservation(ctx, res.ID)
	assert.ErrorIs(t, err, ErrReservationAlreadyCommitted)

	stored, err := e.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, ReservationCommitted, stored.Status)

	_, err = e.Credit(ctx, CreditInput{AccountID: account, Amount: idr("5"), ReferenceID: "in-1"})
	require.NoError(t, err)
	_, err = e.Credit(ctx, CreditInput{AccountID: account, Amount: idr("5"), ReferenceID: "in-1"})
	assert.ErrorIs(t, err, ErrDuplicateCredit)

	page, err := e.GetTransactionHistory(ctx, account, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, ledger.Credit, page.Items[0].Type)
	assert.Equal(t, "in-1", page.Items[0].ReferenceID)

	require.NoError(t, e.VerifyLedger(ctx, account))

	got, err := e.GetWallet(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, "65.00", got.Balance.StringFixed())

	pending, err := events.NewPostgresOutbox(pool).Pending(ctx, 100)
	require.NoError(t, err)
	var types []string
	for _, ev := range pending {
		if ev.AggregateID == account {
			types = append(types, ev.Type)
		}
	}
	assert.Equal(t, []string{
		EventWalletCreated,
		EventBalanceChanged,
		EventBalanceReserved,
		EventReservationCommitted,
		EventBalanceChanged,
	}, types)
}

func TestPostgresRepositoryConcurrentReserves(t *testing.T) {
	pool := pgtest.Start(t)
	e := NewEngine(NewPostgresRepository(pool), logging.Discard(), WithMaxRetries(10_000), WithBackoff(time.Millisecond))
	ctx := context.Background()

	account := "pg-" + uuid.NewString()
	_, err := e.CreateWallet(ctx, CreateInput{AccountID: account, OwnerID: "owner-1"})
	require.NoError(t, err)
	_, err = SeedBalance(ctx, e, account, idr("50.00"))
	require.NoError(t, err)

	var mu sync.Mutex
	succeeded := 0
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.Reserve(ctx, account, idr("10.00"), fmt.Sprintf("c-%d", i)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientBalance)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	w, err := e.GetWallet(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "50.00", w.Reserved.StringFixed())
	assert.True(t, w.Available().IsZero())
}
