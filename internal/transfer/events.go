package transfer

import (
	"time"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/money"
)

const (
	EventTransactionInitiated = "TransactionInitiated"
	EventTransactionCompleted = "TransactionCompleted"
	EventTransactionFailed    = "TransactionFailed"
	EventTransactionCancelled = "TransactionCancelled"
)

const outboxSource = "transfer"

type transactionPayload struct {
	TransactionID          string      `json:"transaction_id"`
	ReferenceNumber        string      `json:"reference_number"`
	SenderAccountID        string      `json:"sender_account_id"`
	RecipientAccountNumber string      `json:"recipient_account_number"`
	Amount                 money.Money `json:"amount"`
	Type                   Type        `json:"type"`
	Status                 Status      `json:"status"`
	FailureCode            FailureCode `json:"failure_code,omitempty"`
	FailureReason          string      `json:"failure_reason,omitempty"`
	RailReference          string      `json:"rail_reference,omitempty"`
	CompensationPending    bool        `json:"compensation_pending,omitempty"`
}

func transactionEvent(eventType string, t Transaction, at time.Time) (events.Event, error) {
	return events.New(eventType, t.ID, transactionPayload{
		TransactionID:          t.ID,
		ReferenceNumber:        t.ReferenceNumber,
		SenderAccountID:        t.SenderAccountID,
		RecipientAccountNumber: t.RecipientAccountNumber,
		Amount:                 t.Amount,
		Type:                   t.Type,
		Status:                 t.Status,
		FailureCode:            t.FailureCode,
		FailureReason:          t.FailureReason,
		RailReference:          t.RailReference,
		CompensationPending:    t.CompensationPending,
	}, at)
}
