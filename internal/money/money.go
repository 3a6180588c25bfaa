package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount is held at.
const Scale = 2

var (
	// ErrInvalidAmount is returned when an amount or currency code cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrCurrencyMismatch is returned by binary operations on different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrNegativeResult is returned when a subtraction would go below zero.
	ErrNegativeResult = errors.New("negative result")
	// ErrInvalidDivisor is returned on division by zero.
	ErrInvalidDivisor = errors.New("invalid divisor")
)

// RoundingMode selects how scale-reducing operations round.
type RoundingMode int

const (
	// HalfEven is banker's rounding and the default for every operation.
	HalfEven RoundingMode = iota
	// HalfUp rounds halves away from zero.
	HalfUp
	// Down truncates towards zero.
	Down
	// Up rounds away from zero.
	Up
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Money is an immutable currency-tagged amount with two fractional digits.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New builds Money from a decimal, rounding it half-to-even to Scale.
func New(amount decimal.Decimal, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if !validCurrency(code) {
		return Money{}, fmt.Errorf("%w: currency %q", ErrInvalidAmount, currency)
	}
	return Money{amount: amount.RoundBank(Scale), currency: code}, nil
}

// Of parses a decimal string such as "100.25" into Money.
func Of(value, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return New(d, currency)
}

// MustOf is Of for literals known to be valid. It panics otherwise.
func MustOf(value, currency string) Money {
	m, err := Of(value, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Amount returns the underlying decimal.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO-4217 code.
func (m Money) Currency() string { return m.currency }

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m - o and fails with ErrNegativeResult instead of going below zero.
// Signed deltas are expressed with Neg and Add.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	out := m.amount.Sub(o.amount)
	if out.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m, o)
	}
	return Money{amount: out, currency: m.currency}, nil
}

// Mul multiplies by a scalar with banker's rounding.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor).RoundBank(Scale), currency: m.currency}
}

// Div divides by a scalar, rounding the quotient with mode.
func (m Money) Div(divisor decimal.Decimal, mode RoundingMode) (Money, error) {
	if divisor.IsZero() {
		return Money{}, ErrInvalidDivisor
	}
	return Money{amount: quotient(m.amount, divisor, mode), currency: m.currency}, nil
}

// Percentage returns pct percent of m, e.g. Percentage(2.5) on 1000.00 is 25.00.
func (m Money) Percentage(pct decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(pct).Div(hundred).RoundBank(Scale), currency: m.currency}
}

// Cmp compares two amounts of the same currency.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

// Equal reports m == o.
func (m Money) Equal(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c == 0, err
}

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c > 0, err
}

// GreaterThanOrEqual reports m >= o.
func (m Money) GreaterThanOrEqual(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c >= 0, err
}

// LessThan reports m < o.
func (m Money) LessThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c < 0, err
}

// LessThanOrEqual reports m <= o.
func (m Money) LessThanOrEqual(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c <= 0, err
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Abs returns the absolute value.
func (m Money) Abs() Money { return Money{amount: m.amount.Abs(), currency: m.currency} }

// Neg returns the negated value.
func (m Money) Neg() Money { return Money{amount: m.amount.Neg(), currency: m.currency} }

// StringFixed renders the amount without currency, always with two decimals.
func (m Money) StringFixed() string { return m.amount.StringFixed(Scale) }

func (m Money) String() string {
	return m.amount.StringFixed(Scale) + " " + m.currency
}

type wireMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as a string to keep precision.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMoney{Amount: m.StringFixed(), Currency: m.currency})
}

// UnmarshalJSON accepts {"amount":"1.00","currency":"IDR"}.
func (m *Money) UnmarshalJSON(data []byte) error {
	var w wireMoney
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	parsed, err := Of(w.Amount, w.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return nil
}

// quotient rounds n/d to Scale from the exact remainder, so no intermediate
// precision can tip a near-half result the wrong way.
func quotient(n, d decimal.Decimal, mode RoundingMode) decimal.Decimal {
	q, r := n.QuoRem(d, Scale) // q is truncated towards zero
	if r.IsZero() {
		return q
	}
	step := decimal.New(1, -Scale)
	if n.Sign()*d.Sign() < 0 {
		step = step.Neg()
	}
	// Compare the dropped fraction with half a step: 2|r| against |d|*10^-Scale.
	half := r.Abs().Mul(two).Cmp(d.Abs().Shift(-Scale))

	switch mode {
	case Down:
		return q
	case Up:
		return q.Add(step)
	case HalfUp:
		if half >= 0 {
			return q.Add(step)
		}
	default:
		if half > 0 || (half == 0 && !q.Shift(Scale).Mod(two).IsZero()) {
			return q.Add(step)
		}
	}
	return q
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
