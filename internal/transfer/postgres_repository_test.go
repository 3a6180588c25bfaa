package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/infra/pgtest"
	"github.com/congo-pay/moneyflow/internal/money"
)

func TestPostgresRepository(t *testing.T) {
	pool := pgtest.Start(t)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx := Transaction{
		ID:                     uuid.NewString(),
		ReferenceNumber:        newReferenceNumber(now),
		SenderAccountID:        "sender",
		RecipientAccountNumber: "0123456789",
		Amount:                 money.MustOf("25000", "IDR"),
		Type:                   TypeBIFast,
		Status:                 StatusPending,
		IdempotencyKey:         "pg-key",
		RequestHash:            "hash",
		CreatedAt:              now.Add(-time.Hour),
		UpdatedAt:              now.Add(-time.Hour),
	}
	ev, err := transactionEvent(EventTransactionInitiated, tx, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, &tx, ev))

	dup := tx
	dup.ID = uuid.NewString()
	dup.ReferenceNumber = newReferenceNumber(now)
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicateIdempotencyKey)

	byKey, err := repo.GetByIdempotencyKey(ctx, "pg-key")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, byKey.ID)
	assert.Equal(t, "25000.00", byKey.Amount.StringFixed())

	require.NoError(t, tx.TransitionTo(StatusValidating, now.Add(-time.Hour)))
	tx.ReservationID = "res-1"
	require.NoError(t, repo.Update(ctx, &tx))
	assert.EqualValues(t, 1, tx.Version)

	stale := tx
	stale.Version = 0
	assert.ErrorIs(t, repo.Update(ctx, &stale), ErrVersionConflict)

	listed, err := repo.ListStale(ctx, StatusValidating, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "res-1", listed[0].ReservationID)

	require.NoError(t, tx.Fail(FailureRailTimeout, "Rail did not answer in time", now))
	tx.CompensationPending = true
	require.NoError(t, repo.Update(ctx, &tx))

	pending, err := repo.ListCompensationPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, FailureRailTimeout, pending[0].FailureCode)
	assert.NotNil(t, pending[0].CompletedAt)

	byRef, err := repo.GetByReference(ctx, tx.ReferenceNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, byRef.Status)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrTransferNotFound)

	outbox, err := events.NewPostgresOutbox(pool).Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, EventTransactionInitiated, outbox[0].Type)
}
