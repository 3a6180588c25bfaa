package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/congo-pay/moneyflow/internal/money"
)

var (
	// ErrEntryNotFound is returned when no entry matches a lookup.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrReplayMismatch indicates a stored balance_after disagrees with the running sum.
	ErrReplayMismatch = errors.New("ledger replay mismatch")

	// ErrUnknownEntryType is returned for entries that are neither CREDIT nor DEBIT.
	ErrUnknownEntryType = errors.New("unknown entry type")
)

// EntryType is the direction of a balance change.
type EntryType string

const (
	Credit EntryType = "CREDIT"
	Debit  EntryType = "DEBIT"
)

// Reference types recorded on entries.
const (
	ReferenceReservation = "RESERVATION"
	ReferenceTransfer    = "TRANSFER"
	ReferenceCardFunding = "CARD_FUNDING"
	ReferenceCredit      = "CREDIT"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Entry is one immutable balance-affecting event on a wallet.
type Entry struct {
	ID            string      `json:"id"`
	WalletID      string      `json:"wallet_id"`
	TransactionID string      `json:"transaction_id"`
	Type          EntryType   `json:"entry_type"`
	Amount        money.Money `json:"amount"`
	BalanceAfter  money.Money `json:"balance_after"`
	ReferenceType string      `json:"reference_type"`
	ReferenceID   string      `json:"reference_id"`
	Description   string      `json:"description"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Signed returns the amount as a delta: negative for debits.
func (e Entry) Signed() money.Money {
	if e.Type == Debit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Replay folds entries, oldest first, from a zero balance and checks every
// balance_after along the way. The result must equal the wallet balance.
func Replay(currency string, entries []Entry) (money.Money, error) {
	balance := money.Zero(currency)
	for _, e := range entries {
		var err error
		switch e.Type {
		case Credit:
			balance, err = balance.Add(e.Amount)
		case Debit:
			balance, err = balance.Sub(e.Amount)
		default:
			return money.Money{}, fmt.Errorf("entry %s: %w: %q", e.ID, ErrUnknownEntryType, e.Type)
		}
		if err != nil {
			return money.Money{}, fmt.Errorf("replay entry %s: %w", e.ID, err)
		}
		if eq, err := balance.Equal(e.BalanceAfter); err != nil || !eq {
			return money.Money{}, fmt.Errorf("%w: entry %s records %s, replayed %s", ErrReplayMismatch, e.ID, e.BalanceAfter, balance)
		}
	}
	return balance, nil
}

// Page is one page of history, newest first.
type Page struct {
	Items []Entry `json:"items"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
	Total int     `json:"total"`
}

// TotalPages reports how many pages of Size exist.
func (p Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// NormalizePage clamps a 1-based page number and page size and returns the
// row offset to read from.
func NormalizePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, (page - 1) * size
}
