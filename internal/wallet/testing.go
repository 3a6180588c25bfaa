package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/congo-pay/moneyflow/internal/ledger"
	"github.com/congo-pay/moneyflow/internal/money"
)

// SeedBalance credits amount through the engine so tests start from a funded,
// ledger-consistent wallet.
func SeedBalance(ctx context.Context, e *Engine, accountID string, amount money.Money) (ledger.Entry, error) {
	return e.Credit(ctx, CreditInput{
		AccountID:   accountID,
		Amount:      amount,
		ReferenceID: "seed:" + uuid.NewString(),
		Description: "seed balance",
	})
}
