package funding

import (
	"time"

	"github.com/congo-pay/moneyflow/internal/money"
)

// CardInRequest captures user-provided data to fund a wallet from a card.
type CardInRequest struct {
	CardNumber string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	Expiry     string `json:"expiry" validate:"required,len=5"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	Amount     string `json:"amount" validate:"required,numeric"`
	ClientTxID string `json:"client_tx_id" validate:"required,max=128"`
}

// CardOutRequest captures withdrawal details to push funds to a card.
type CardOutRequest struct {
	CardNumber string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	Amount     string `json:"amount" validate:"required,numeric"`
	ClientTxID string `json:"client_tx_id" validate:"required,max=128"`
}

// FundingResponse represents the API response for card funding actions.
type FundingResponse struct {
	TransactionID     string      `json:"transaction_id"`
	Status            string      `json:"status"`
	Amount            money.Money `json:"amount"`
	WalletBalance     money.Money `json:"wallet_balance"`
	AcquirerReference string      `json:"acquirer_reference,omitempty"`
	CompletedAt       time.Time   `json:"completed_at"`
}
