package transfer

import (
	"time"

	"github.com/congo-pay/moneyflow/internal/money"
)

// Quote is the static fee and completion estimate of a transfer type.
type Quote struct {
	Fee                 money.Money
	EstimatedCompletion time.Duration
}

type quoteRow struct {
	fee string
	eta time.Duration
}

var quotes = map[Type]quoteRow{
	TypeInternal: {fee: "0", eta: 0},
	TypeBIFast:   {fee: "2500", eta: 10 * time.Second},
	TypeSKN:      {fee: "2900", eta: 24 * time.Hour},
	TypeRTGS:     {fee: "25000", eta: time.Hour},
}

// QuoteFor returns the fee table entry for t in currency.
func QuoteFor(t Type, currency string) Quote {
	row, ok := quotes[t]
	if !ok {
		return Quote{Fee: money.Zero(currency)}
	}
	fee, err := money.Of(row.fee, currency)
	if err != nil {
		fee = money.Zero(currency)
	}
	return Quote{Fee: fee, EstimatedCompletion: row.eta}
}
