package rail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/moneyflow/internal/money"
	"github.com/congo-pay/moneyflow/internal/transfer"
)

func request(ref, amount string) transfer.RailRequest {
	m := money.MustOf(amount, "IDR")
	return transfer.RailRequest{ReferenceNumber: ref, Amount: m, Currency: "IDR", SourceRef: "a", DestinationRef: "b"}
}

func TestSimulatorSettlesAndDedupes(t *testing.T) {
	sim := NewSimulator("bifast")
	first, err := sim.Transfer(context.Background(), request("TRX1", "100"))
	require.NoError(t, err)
	assert.Equal(t, transfer.RailSuccess, first.Status)
	assert.NotEmpty(t, first.RailReference)

	again, err := sim.Transfer(context.Background(), request("TRX1", "100"))
	require.NoError(t, err)
	assert.Equal(t, first.RailReference, again.RailReference)
	assert.Equal(t, 1, sim.Calls())
}

func TestSimulatorDeclinesAboveLimit(t *testing.T) {
	sim := NewSimulator("skn", WithDeclineAbove(money.MustOf("1000", "IDR")))
	resp, err := sim.Transfer(context.Background(), request("TRX2", "1000.01"))
	require.NoError(t, err)
	assert.Equal(t, transfer.RailFailed, resp.Status)
	assert.Contains(t, resp.Message, "limit")
}

func TestSimulatorInjectedFailure(t *testing.T) {
	sim := NewSimulator("rtgs")
	sim.FailNext(1)
	_, err := sim.Transfer(context.Background(), request("TRX3", "1"))
	assert.ErrorIs(t, err, ErrInjected)

	resp, err := sim.Transfer(context.Background(), request("TRX3", "1"))
	require.NoError(t, err)
	assert.Equal(t, transfer.RailSuccess, resp.Status)
}

func TestSimulatorHonoursDeadline(t *testing.T) {
	sim := NewSimulator("bifast", WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sim.Transfer(ctx, request("TRX4", "1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, sim.Calls())
}
