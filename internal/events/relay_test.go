package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/moneyflow/internal/logging"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func mustEvent(t *testing.T, typ, aggregate string) Event {
	t.Helper()
	e, err := New(typ, aggregate, map[string]string{"k": "v"}, time.Now())
	require.NoError(t, err)
	return e
}

func TestRelayFlushPublishesInOrder(t *testing.T) {
	outbox := NewMemoryOutbox()
	first := mustEvent(t, "BalanceReserved", "acc-1")
	second := mustEvent(t, "ReservationCommitted", "acc-1")
	outbox.Append(first, second)

	var seen []string
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = append(seen, args.Get(1).(Event).ID)
	}).Return(nil)

	relay := NewRelay(outbox, pub, logging.Discard(), time.Minute)
	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{first.ID, second.ID}, seen)

	pending, err := outbox.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Nothing left: a second flush publishes nothing.
	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestRelayStopsAtFirstFailureAndRetriesLater(t *testing.T) {
	outbox := NewMemoryOutbox()
	first := mustEvent(t, "A", "x")
	second := mustEvent(t, "B", "x")
	outbox.Append(first, second)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, first).Return(nil).Once()
	pub.On("Publish", mock.Anything, second).Return(errors.New("broker down")).Once()

	relay := NewRelay(outbox, pub, logging.Discard(), time.Minute)
	n, err := relay.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := outbox.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	pub.On("Publish", mock.Anything, second).Return(nil).Once()
	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pub.AssertExpectations(t)
}

func TestRelayRunFlushesOnNotify(t *testing.T) {
	outbox := NewMemoryOutbox()
	published := make(chan Event, 1)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published <- args.Get(1).(Event)
	}).Return(nil)

	relay := NewRelay(outbox, pub, logging.Discard(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	e := mustEvent(t, "BalanceChanged", "acc-9")
	outbox.Append(e)
	relay.Notify()

	select {
	case got := <-published:
		assert.Equal(t, e.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not flush after Notify")
	}
}
