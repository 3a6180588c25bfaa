package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/infra"
	"github.com/congo-pay/moneyflow/internal/ledger"
	"github.com/congo-pay/moneyflow/internal/money"
)

// PostgresRepository stores wallets, reservations, ledger entries and outbox
// rows in PostgreSQL. Every Apply is one database transaction.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, account_id, owner_id, currency, balance::text, reserved_balance::text, status, version, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, w Wallet, evs ...events.Event) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO wallets (id, account_id, owner_id, currency, balance, reserved_balance, status, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.ID, w.AccountID, w.OwnerID, w.Currency, w.Balance.StringFixed(), w.Reserved.StringFixed(), string(w.Status), w.Version, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return ErrWalletExists
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	if err := events.InsertTx(ctx, tx, outboxSource, evs...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) GetByAccount(ctx context.Context, accountID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE account_id = $1`, accountID)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

const reservationColumns = `id, wallet_id, account_id, amount::text, currency, reference_id, status, created_at, closed_at`

func (r *PostgresRepository) GetReservation(ctx context.Context, id string) (Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrReservationNotFound
	}
	return res, err
}

func (r *PostgresRepository) FindOpenReservation(ctx context.Context, walletID, referenceID string) (Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations
        WHERE wallet_id = $1 AND reference_id = $2 AND status = 'OPEN'`, walletID, referenceID)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrReservationNotFound
	}
	return res, err
}

const entryColumns = `id, wallet_id, transaction_id, entry_type, amount::text, balance_after::text, currency, reference_type, reference_id, description, created_at`

func (r *PostgresRepository) FindCredit(ctx context.Context, walletID, referenceID string) (ledger.Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries
        WHERE wallet_id = $1 AND reference_id = $2 AND entry_type = 'CREDIT'`, walletID, referenceID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, err
}

func (r *PostgresRepository) ListEntries(ctx context.Context, walletID string, offset, limit int) ([]ledger.Entry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`, walletID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
        WHERE wallet_id = $1 ORDER BY seq DESC OFFSET $2 LIMIT $3`, walletID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectEntries(rows)
	return items, total, err
}

func (r *PostgresRepository) Entries(ctx context.Context, walletID string) ([]ledger.Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE wallet_id = $1 ORDER BY seq`, walletID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *PostgresRepository) Apply(ctx context.Context, m Mutation) (Wallet, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w := m.Wallet
	tag, err := tx.Exec(ctx, `UPDATE wallets
        SET balance = $1, reserved_balance = $2, status = $3, version = version + 1, updated_at = $4
        WHERE account_id = $5 AND version = $6`,
		w.Balance.StringFixed(), w.Reserved.StringFixed(), string(w.Status), w.UpdatedAt, w.AccountID, w.Version)
	if err != nil {
		return Wallet{}, fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Wallet{}, ErrVersionConflict
	}

	if res := m.CloseReservation; res != nil {
		tag, err := tx.Exec(ctx, `UPDATE reservations SET status = $1, closed_at = $2 WHERE id = $3 AND status = 'OPEN'`,
			string(res.Status), res.ClosedAt, res.ID)
		if err != nil {
			return Wallet{}, fmt.Errorf("close reservation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return Wallet{}, ErrVersionConflict
		}
	}

	if res := m.OpenReservation; res != nil {
		_, err := tx.Exec(ctx, `INSERT INTO reservations (id, wallet_id, account_id, amount, currency, reference_id, status, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			res.ID, res.WalletID, res.AccountID, res.Amount.StringFixed(), res.Amount.Currency(), res.ReferenceID, string(res.Status), res.CreatedAt)
		if err != nil {
			if infra.IsUniqueViolation(err) {
				return Wallet{}, ErrVersionConflict
			}
			return Wallet{}, fmt.Errorf("insert reservation: %w", err)
		}
	}

	if e := m.Entry; e != nil {
		_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, wallet_id, transaction_id, entry_type, amount, balance_after, currency, reference_type, reference_id, description, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			e.ID, e.WalletID, e.TransactionID, string(e.Type), e.Amount.StringFixed(), e.BalanceAfter.StringFixed(),
			e.Amount.Currency(), e.ReferenceType, e.ReferenceID, e.Description, e.CreatedAt)
		if err != nil {
			// The credit reference index lost a race; the retry sees the winner.
			if infra.IsUniqueViolation(err) {
				return Wallet{}, ErrVersionConflict
			}
			return Wallet{}, fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err := events.InsertTx(ctx, tx, outboxSource, m.Events...); err != nil {
		return Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}

	w.Version++
	return w, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var balance, reserved, status string
	if err := row.Scan(&w.ID, &w.AccountID, &w.OwnerID, &w.Currency, &balance, &reserved, &status, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	var err error
	if w.Balance, err = money.Of(balance, w.Currency); err != nil {
		return Wallet{}, err
	}
	if w.Reserved, err = money.Of(reserved, w.Currency); err != nil {
		return Wallet{}, err
	}
	w.Status = Status(status)
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	var amount, currency, status string
	var closedAt *time.Time
	if err := row.Scan(&res.ID, &res.WalletID, &res.AccountID, &amount, &currency, &res.ReferenceID, &status, &res.CreatedAt, &closedAt); err != nil {
		return Reservation{}, err
	}
	var err error
	if res.Amount, err = money.Of(amount, currency); err != nil {
		return Reservation{}, err
	}
	res.Status = ReservationStatus(status)
	res.CreatedAt = res.CreatedAt.UTC()
	if closedAt != nil {
		t := closedAt.UTC()
		res.ClosedAt = &t
	}
	return res, nil
}

func scanEntry(row pgx.Row) (ledger.Entry, error) {
	var e ledger.Entry
	var typ, amount, after, currency string
	if err := row.Scan(&e.ID, &e.WalletID, &e.TransactionID, &typ, &amount, &after, &currency, &e.ReferenceType, &e.ReferenceID, &e.Description, &e.CreatedAt); err != nil {
		return ledger.Entry{}, err
	}
	var err error
	if e.Amount, err = money.Of(amount, currency); err != nil {
		return ledger.Entry{}, err
	}
	if e.BalanceAfter, err = money.Of(after, currency); err != nil {
		return ledger.Entry{}, err
	}
	e.Type = ledger.EntryType(typ)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]ledger.Entry, error) {
	defer rows.Close()
	items := []ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
