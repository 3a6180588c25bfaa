package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/ledger"
	"github.com/congo-pay/moneyflow/internal/money"
)

const (
	defaultCurrency   = "IDR"
	defaultMaxRetries = 10
	defaultBackoff    = 5 * time.Millisecond
)

// Engine is the public operation set over wallets and the reservation
// registry. Every mutation is a read-modify-write guarded by the wallet
// version; conflicting writers retry, different wallets never contend.
type Engine struct {
	repo       Repository
	logger     *slog.Logger
	signal     events.Signal
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithMaxRetries bounds optimistic retries per operation.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) { e.backoff = d }
}

// WithSignal wakes an outbox relay after each committed write.
func WithSignal(s events.Signal) Option {
	return func(e *Engine) {
		if s != nil {
			e.signal = s
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds a wallet engine.
func NewEngine(repo Repository, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:       repo,
		logger:     logger,
		signal:     events.NopSignal{},
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateInput captures data required to onboard a wallet.
type CreateInput struct {
	AccountID string
	OwnerID   string
	Currency  string
}

// CreateWallet opens an empty active wallet for an account.
func (e *Engine) CreateWallet(ctx context.Context, in CreateInput) (Wallet, error) {
	if strings.TrimSpace(in.AccountID) == "" || strings.TrimSpace(in.OwnerID) == "" {
		return Wallet{}, fmt.Errorf("%w: account id and owner id are required", ErrInvalidRequest)
	}
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	zero, err := money.Of("0", currency)
	if err != nil {
		return Wallet{}, err
	}

	now := e.now()
	w := Wallet{
		ID:        uuid.NewString(),
		AccountID: in.AccountID,
		OwnerID:   in.OwnerID,
		Currency:  zero.Currency(),
		Balance:   zero,
		Reserved:  zero,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	evs, err := newEvent(EventWalletCreated, w, struct {
		AccountID string `json:"account_id"`
		OwnerID   string `json:"owner_id"`
		Currency  string `json:"currency"`
	}{w.AccountID, w.OwnerID, w.Currency}, now)
	if err != nil {
		return Wallet{}, err
	}
	if err := e.repo.Create(ctx, w, evs...); err != nil {
		return Wallet{}, err
	}
	e.signal.Notify()
	e.logger.Info("wallet created", "account_id", w.AccountID, "wallet_id", w.ID, "currency", w.Currency)
	return w, nil
}

// GetWallet returns the wallet of an account.
func (e *Engine) GetWallet(ctx context.Context, accountID string) (Wallet, error) {
	return e.repo.GetByAccount(ctx, accountID)
}

// GetBalance returns the ledger balance, holds included.
func (e *Engine) GetBalance(ctx context.Context, accountID string) (money.Money, error) {
	w, err := e.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return money.Money{}, err
	}
	return w.Balance, nil
}

// GetAvailableBalance returns the balance minus open holds.
func (e *Engine) GetAvailableBalance(ctx context.Context, accountID string) (money.Money, error) {
	w, err := e.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return money.Money{}, err
	}
	return w.Available(), nil
}

// GetReservation looks up a reservation in the registry, open or closed.
func (e *Engine) GetReservation(ctx context.Context, id string) (Reservation, error) {
	return e.repo.GetReservation(ctx, id)
}

// FindOpenReservation returns the open hold placed on the account under
// referenceID, or ErrReservationNotFound.
func (e *Engine) FindOpenReservation(ctx context.Context, accountID, referenceID string) (Reservation, error) {
	w, err := e.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return Reservation{}, err
	}
	return e.repo.FindOpenReservation(ctx, w.ID, referenceID)
}

// Reserve places a hold of amount on the account. A repeated call with the
// same reference while the first hold is open returns that hold.
func (e *Engine) Reserve(ctx context.Context, accountID string, amount money.Money, referenceID string) (Reservation, error) {
	if referenceID == "" {
		return Reservation{}, fmt.Errorf("%w: reference id is required", ErrInvalidRequest)
	}

	var out Reservation
	replayed := false
	err := e.retry(ctx, "reserve", func() error {
		w, err := e.repo.GetByAccount(ctx, accountID)
		if err != nil {
			return err
		}

		existing, err := e.repo.FindOpenReservation(ctx, w.ID, referenceID)
		switch {
		case err == nil:
			if same, _ := existing.Amount.Equal(amount); !same {
				return fmt.Errorf("%w: reference %s holds %s", ErrReferenceConflict, referenceID, existing.Amount)
			}
			out, replayed = existing, true
			return nil
		case !errors.Is(err, ErrReservationNotFound):
			return err
		}

		next := w
		if err := next.Reserve(amount); err != nil {
			return err
		}
		now := e.now()
		next.UpdatedAt = now
		res := Reservation{
			ID:          uuid.NewString(),
			WalletID:    w.ID,
			AccountID:   w.AccountID,
			Amount:      amount,
			ReferenceID: referenceID,
			Status:      ReservationOpen,
			CreatedAt:   now,
		}
		evs, err := newEvent(EventBalanceReserved, next, reservationPayload{
			AccountID:       w.AccountID,
			ReservationID:   res.ID,
			ReferenceID:     referenceID,
			Amount:          amount,
			balancesPayload: balancesOf(next),
		}, now)
		if err != nil {
			return err
		}
		if _, err := e.repo.Apply(ctx, Mutation{Wallet: next, OpenReservation: &res, Events: evs}); err != nil {
			return err
		}
		out, replayed = res, false
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	if !replayed {
		e.logger.Info("balance reserved", "account_id", accountID, "reservation_id", out.ID, "reference_id", referenceID, "amount", amount.String())
	}
	return out, nil
}

// CommitReservation settles an open hold: balance and reserved both drop by
// the held amount and one DEBIT entry is appended.
func (e *Engine) CommitReservation(ctx context.Context, reservationID string) (ledger.Entry, error) {
	var entry ledger.Entry
	err := e.retry(ctx, "commit reservation", func() error {
		res, w, err := e.loadOpen(ctx, reservationID)
		if err != nil {
			return err
		}

		next := w
		if err := next.Commit(res.Amount); err != nil {
			return err
		}
		now := e.now()
		next.UpdatedAt = now
		closed := res
		closed.Status = ReservationCommitted
		closed.ClosedAt = &now

		entry = ledger.Entry{
			ID:            uuid.NewString(),
			WalletID:      w.ID,
			TransactionID: res.ReferenceID,
			Type:          ledger.Debit,
			Amount:        res.Amount,
			BalanceAfter:  next.Balance,
			ReferenceType: ledger.ReferenceReservation,
			ReferenceID:   res.ID,
			Description:   "reservation committed",
			CreatedAt:     now,
		}
		evs, err := newEvent(EventReservationCommitted, next, reservationPayload{
			AccountID:       w.AccountID,
			ReservationID:   res.ID,
			ReferenceID:     res.ReferenceID,
			Amount:          res.Amount,
			EntryID:         entry.ID,
			balancesPayload: balancesOf(next),
		}, now)
		if err != nil {
			return err
		}
		_, err = e.repo.Apply(ctx, Mutation{Wallet: next, CloseReservation: &closed, Entry: &entry, Events: evs})
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	e.logger.Info("reservation committed", "reservation_id", reservationID, "entry_id", entry.ID, "amount", entry.Amount.String(), "balance_after", entry.BalanceAfter.String())
	return entry, nil
}

// ReleaseReservation drops an open hold, restoring availability.
func (e *Engine) ReleaseReservation(ctx context.Context, reservationID string) error {
	err := e.retry(ctx, "release reservation", func() error {
		res, w, err := e.loadOpen(ctx, reservationID)
		if err != nil {
			return err
		}

		next := w
		if err := next.Release(res.Amount); err != nil {
			return err
		}
		now := e.now()
		next.UpdatedAt = now
		closed := res
		closed.Status = ReservationReleased
		closed.ClosedAt = &now

		evs, err := newEvent(EventReservationReleased, next, reservationPayload{
			AccountID:       w.AccountID,
			ReservationID:   res.ID,
			ReferenceID:     res.ReferenceID,
			Amount:          res.Amount,
			balancesPayload: balancesOf(next),
		}, now)
		if err != nil {
			return err
		}
		_, err = e.repo.Apply(ctx, Mutation{Wallet: next, CloseReservation: &closed, Events: evs})
		return err
	})
	if err != nil {
		return err
	}
	e.logger.Info("reservation released", "reservation_id", reservationID)
	return nil
}

// CreditInput describes money entering a wallet.
type CreditInput struct {
	AccountID     string
	Amount        money.Money
	ReferenceID   string
	ReferenceType string
	Description   string
}

// Credit adds money to a wallet and appends one CREDIT entry. Each reference
// is applied once per wallet; a repeat returns the original entry together
// with ErrDuplicateCredit.
func (e *Engine) Credit(ctx context.Context, in CreditInput) (ledger.Entry, error) {
	if in.ReferenceID == "" {
		return ledger.Entry{}, fmt.Errorf("%w: reference id is required", ErrInvalidRequest)
	}
	if in.ReferenceType == "" {
		in.ReferenceType = ledger.ReferenceCredit
	}

	var entry ledger.Entry
	duplicate := false
	err := e.retry(ctx, "credit", func() error {
		w, err := e.repo.GetByAccount(ctx, in.AccountID)
		if err != nil {
			return err
		}
		existing, err := e.repo.FindCredit(ctx, w.ID, in.ReferenceID)
		switch {
		case err == nil:
			entry, duplicate = existing, true
			return nil
		case !errors.Is(err, ledger.ErrEntryNotFound):
			return err
		}

		next := w
		if err := next.Credit(in.Amount); err != nil {
			return err
		}
		now := e.now()
		next.UpdatedAt = now
		entry = ledger.Entry{
			ID:            uuid.NewString(),
			WalletID:      w.ID,
			TransactionID: in.ReferenceID,
			Type:          ledger.Credit,
			Amount:        in.Amount,
			BalanceAfter:  next.Balance,
			ReferenceType: in.ReferenceType,
			ReferenceID:   in.ReferenceID,
			Description:   in.Description,
			CreatedAt:     now,
		}
		evs, err := newEvent(EventBalanceChanged, next, balanceChangedPayload{
			AccountID:       w.AccountID,
			EntryID:         entry.ID,
			EntryType:       string(ledger.Credit),
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			Amount:          in.Amount,
			balancesPayload: balancesOf(next),
		}, now)
		if err != nil {
			return err
		}
		_, err = e.repo.Apply(ctx, Mutation{Wallet: next, Entry: &entry, Events: evs})
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	if duplicate {
		return entry, ErrDuplicateCredit
	}
	e.logger.Info("wallet credited", "account_id", in.AccountID, "entry_id", entry.ID, "reference_id", in.ReferenceID, "amount", in.Amount.String())
	return entry, nil
}

// GetTransactionHistory pages ledger entries newest first. page is 1-based.
func (e *Engine) GetTransactionHistory(ctx context.Context, accountID string, page, size int) (ledger.Page, error) {
	w, err := e.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return ledger.Page{}, err
	}
	page, size, offset := ledger.NormalizePage(page, size)
	items, total, err := e.repo.ListEntries(ctx, w.ID, offset, size)
	if err != nil {
		return ledger.Page{}, err
	}
	return ledger.Page{Items: items, Page: page, Size: size, Total: total}, nil
}

// FindCredit returns the credit entry applied for a reference, if any.
func (e *Engine) FindCredit(ctx context.Context, accountID, referenceID string) (ledger.Entry, error) {
	w, err := e.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return ledger.Entry{}, err
	}
	return e.repo.FindCredit(ctx, w.ID, referenceID)
}

// VerifyLedger replays the account's entries and compares with its balance.
func (e *Engine) VerifyLedger(ctx context.Context, accountID string) error {
	w, err := e.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	entries, err := e.repo.Entries(ctx, w.ID)
	if err != nil {
		return err
	}
	replayed, err := ledger.Replay(w.Currency, entries)
	if err != nil {
		return err
	}
	if same, err := replayed.Equal(w.Balance); err != nil || !same {
		return fmt.Errorf("%w: wallet %s balance %s, ledger %s", ledger.ErrReplayMismatch, accountID, w.Balance, replayed)
	}
	return nil
}

// Freeze blocks new reservations. Existing holds can still settle.
func (e *Engine) Freeze(ctx context.Context, accountID, reason string) (Wallet, error) {
	return e.changeStatus(ctx, accountID, reason, (*Wallet).Freeze)
}

// Unfreeze reactivates a frozen wallet.
func (e *Engine) Unfreeze(ctx context.Context, accountID, reason string) (Wallet, error) {
	return e.changeStatus(ctx, accountID, reason, (*Wallet).Unfreeze)
}

// Close permanently closes an empty wallet. Wallets are never deleted.
func (e *Engine) Close(ctx context.Context, accountID, reason string) (Wallet, error) {
	return e.changeStatus(ctx, accountID, reason, (*Wallet).Close)
}

func (e *Engine) changeStatus(ctx context.Context, accountID, reason string, change func(*Wallet) error) (Wallet, error) {
	var stored Wallet
	err := e.retry(ctx, "change status", func() error {
		w, err := e.repo.GetByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		next := w
		if err := change(&next); err != nil {
			return err
		}
		now := e.now()
		next.UpdatedAt = now
		evs, err := newEvent(EventWalletStatusChanged, next, statusPayload{
			AccountID: accountID,
			From:      w.Status,
			To:        next.Status,
			Reason:    reason,
		}, now)
		if err != nil {
			return err
		}
		stored, err = e.repo.Apply(ctx, Mutation{Wallet: next, Events: evs})
		return err
	})
	if err != nil {
		return Wallet{}, err
	}
	e.logger.Info("wallet status changed", "account_id", accountID, "status", stored.Status, "reason", reason)
	return stored, nil
}

func (e *Engine) loadOpen(ctx context.Context, reservationID string) (Reservation, Wallet, error) {
	res, err := e.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, Wallet{}, err
	}
	if err := res.closedErr(); err != nil {
		return Reservation{}, Wallet{}, err
	}
	w, err := e.repo.GetByAccount(ctx, res.AccountID)
	if err != nil {
		return Reservation{}, Wallet{}, err
	}
	return res, w, nil
}

// retry runs fn until it stops returning ErrVersionConflict or the budget is
// spent. fn must re-read everything it depends on.
func (e *Engine) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			e.signal.Notify()
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if attempt >= e.maxRetries {
			e.logger.Warn("optimistic retries exhausted", "op", op, "attempts", attempt)
			return fmt.Errorf("%s: %w", op, ErrConcurrentModification)
		}
		if e.backoff > 0 {
			delay := e.backoff + time.Duration(rand.Int64N(int64(e.backoff)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}
