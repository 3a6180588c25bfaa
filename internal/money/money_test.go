package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.00"},
		{"1.015", "1.02"},
		{"2.675", "2.68"},
		{"100", "100.00"},
		{"-0.125", "-0.12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := Of(tt.in, "idr")
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.StringFixed())
			assert.Equal(t, "IDR", m.Currency())
		})
	}
}

func TestOfRejectsGarbage(t *testing.T) {
	_, err := Of("12,50", "IDR")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Of("10", "RUPIAH")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCurrencyMismatch(t *testing.T) {
	a := MustOf("10", "IDR")
	b := MustOf("10", "USD")

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = a.Sub(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = a.GreaterThan(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestSubNeverGoesNegative(t *testing.T) {
	a := MustOf("60.00", "IDR")

	out, err := a.Sub(MustOf("60.00", "IDR"))
	require.NoError(t, err)
	assert.True(t, out.IsZero())

	_, err = a.Sub(MustOf("60.01", "IDR"))
	assert.ErrorIs(t, err, ErrNegativeResult)

	// Signed deltas go through Neg.
	delta, err := a.Neg().Add(MustOf("20", "IDR"))
	require.NoError(t, err)
	assert.Equal(t, "-40.00", delta.StringFixed())
	assert.True(t, delta.IsNegative())
	assert.Equal(t, "40.00", delta.Abs().StringFixed())
}

func TestDivRoundingModes(t *testing.T) {
	m := MustOf("0.05", "IDR")
	two := decimal.NewFromInt(2)

	tests := map[RoundingMode]string{
		HalfEven: "0.02",
		HalfUp:   "0.03",
		Down:     "0.02",
		Up:       "0.03",
	}
	for mode, want := range tests {
		got, err := m.Div(two, mode)
		require.NoError(t, err)
		assert.Equal(t, want, got.StringFixed(), "mode %d", mode)
	}

	third, err := MustOf("10", "IDR").Div(decimal.NewFromInt(3), HalfEven)
	require.NoError(t, err)
	assert.Equal(t, "3.33", third.StringFixed())

	_, err = m.Div(decimal.Zero, HalfEven)
	assert.ErrorIs(t, err, ErrInvalidDivisor)
}

func TestDivRoundsFromExactQuotient(t *testing.T) {
	// 0.05 / 9.999999999999999999 is a hair above 0.005.
	divisor := decimal.RequireFromString("9.999999999999999999")
	tests := map[RoundingMode]string{
		HalfEven: "0.01",
		HalfUp:   "0.01",
		Down:     "0.00",
		Up:       "0.01",
	}
	for mode, want := range tests {
		got, err := MustOf("0.05", "IDR").Div(divisor, mode)
		require.NoError(t, err)
		assert.Equal(t, want, got.StringFixed(), "mode %d", mode)
	}

	// A hair below the half stays down even for HalfUp.
	below, err := MustOf("0.05", "IDR").Div(decimal.RequireFromString("10.000000000000000001"), HalfUp)
	require.NoError(t, err)
	assert.Equal(t, "0.00", below.StringFixed())
}

func TestDivNegativeRoundsAwayFromZero(t *testing.T) {
	m := MustOf("0.05", "IDR").Neg()
	two := decimal.NewFromInt(2)

	tests := map[RoundingMode]string{
		HalfEven: "-0.02",
		HalfUp:   "-0.03",
		Down:     "-0.02",
		Up:       "-0.03",
	}
	for mode, want := range tests {
		got, err := m.Div(two, mode)
		require.NoError(t, err)
		assert.Equal(t, want, got.StringFixed(), "mode %d", mode)
	}

	odd, err := MustOf("0.15", "IDR").Div(decimal.NewFromInt(-2), HalfEven)
	require.NoError(t, err)
	assert.Equal(t, "-0.08", odd.StringFixed())
}

func TestMulAndPercentage(t *testing.T) {
	assert.Equal(t, "0.62", MustOf("1.25", "IDR").Mul(decimal.RequireFromString("0.5")).StringFixed())
	assert.Equal(t, "25.00", MustOf("1000", "IDR").Percentage(decimal.RequireFromString("2.5")).StringFixed())
	assert.Equal(t, "0.02", MustOf("0.25", "IDR").Percentage(decimal.NewFromInt(10)).StringFixed())
}

func TestComparisons(t *testing.T) {
	small := MustOf("40", "IDR")
	big := MustOf("80", "IDR")

	gt, err := big.GreaterThan(small)
	require.NoError(t, err)
	assert.True(t, gt)

	lt, err := big.LessThan(small)
	require.NoError(t, err)
	assert.False(t, lt)

	gte, err := small.GreaterThanOrEqual(MustOf("40.00", "IDR"))
	require.NoError(t, err)
	assert.True(t, gte)

	eq, err := small.Equal(MustOf("40.001", "IDR"))
	require.NoError(t, err)
	assert.True(t, eq)

	assert.True(t, Zero("IDR").IsZero())
	assert.True(t, small.IsPositive())
}

func TestJSON(t *testing.T) {
	raw, err := json.Marshal(MustOf("25000", "IDR"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"25000.00","currency":"IDR"}`, string(raw))

	var back Money
	require.NoError(t, json.Unmarshal(raw, &back))
	eq, err := back.Equal(MustOf("25000", "IDR"))
	require.NoError(t, err)
	assert.True(t, eq)

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"amount":"x","currency":"IDR"}`), &back), ErrInvalidAmount)
}
