package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/infra"
	"github.com/congo-pay/moneyflow/internal/money"
)

// PostgresRepository stores transactions and their outbox rows in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transferColumns = `id, reference_number, sender_account_id, recipient_account_number, amount::text, currency,
    description, purpose_code, type, status, failure_code, failure_reason, COALESCE(idempotency_key, ''), request_hash,
    reservation_id, rail_reference, compensation_pending, version, created_at, updated_at, completed_at`

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *PostgresRepository) Create(ctx context.Context, t *Transaction, evs ...events.Event) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO transfers (id, reference_number, sender_account_id, recipient_account_number, amount, currency,
        description, purpose_code, type, status, failure_code, failure_reason, idempotency_key, request_hash,
        reservation_id, rail_reference, compensation_pending, version, created_at, updated_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		t.ID, t.ReferenceNumber, t.SenderAccountID, t.RecipientAccountNumber, t.Amount.StringFixed(), t.Amount.Currency(),
		t.Description, t.PurposeCode, string(t.Type), string(t.Status), string(t.FailureCode), t.FailureReason,
		nullable(t.IdempotencyKey), t.RequestHash, t.ReservationID, t.RailReference, t.CompensationPending,
		t.Version, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		if infra.IsUniqueViolation(err) && infra.ConstraintName(err) == "transfers_idempotency_key_idx" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	if err := events.InsertTx(ctx, tx, outboxSource, evs...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	return r.one(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByReference(ctx context.Context, referenceNumber string) (Transaction, error) {
	return r.one(ctx, `SELECT `+transferColumns+` FROM transfers WHERE reference_number = $1`, referenceNumber)
}

func (r *PostgresRepository) GetByIdempotencyKey(ctx context.Context, key string) (Transaction, error) {
	return r.one(ctx, `SELECT `+transferColumns+` FROM transfers WHERE idempotency_key = $1`, key)
}

func (r *PostgresRepository) Update(ctx context.Context, t *Transaction, evs ...events.Event) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, `UPDATE transfers SET status = $1, failure_code = $2, failure_reason = $3, reservation_id = $4,
        rail_reference = $5, compensation_pending = $6, updated_at = $7, completed_at = $8, version = version + 1
        WHERE id = $9 AND version = $10`,
		string(t.Status), string(t.FailureCode), t.FailureReason, t.ReservationID, t.RailReference,
		t.CompensationPending, t.UpdatedAt, t.CompletedAt, t.ID, t.Version)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	if err := events.InsertTx(ctx, tx, outboxSource, evs...); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	t.Version++
	return nil
}

func (r *PostgresRepository) ListStale(ctx context.Context, status Status, updatedBefore time.Time, limit int) ([]Transaction, error) {
	return r.many(ctx, `SELECT `+transferColumns+` FROM transfers WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3`,
		string(status), updatedBefore, limit)
}

func (r *PostgresRepository) ListCompensationPending(ctx context.Context, limit int) ([]Transaction, error) {
	return r.many(ctx, `SELECT `+transferColumns+` FROM transfers WHERE compensation_pending ORDER BY updated_at LIMIT $1`, limit)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransferNotFound
	}
	return t, err
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var amount, currency, typ, status, code string
	var completedAt *time.Time
	if err := row.Scan(&t.ID, &t.ReferenceNumber, &t.SenderAccountID, &t.RecipientAccountNumber, &amount, &currency,
		&t.Description, &t.PurposeCode, &typ, &status, &code, &t.FailureReason, &t.IdempotencyKey, &t.RequestHash,
		&t.ReservationID, &t.RailReference, &t.CompensationPending, &t.Version, &t.CreatedAt, &t.UpdatedAt, &completedAt); err != nil {
		return Transaction{}, err
	}
	var err error
	if t.Amount, err = money.Of(amount, currency); err != nil {
		return Transaction{}, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)
	t.FailureCode = FailureCode(code)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if completedAt != nil {
		c := completedAt.UTC()
		t.CompletedAt = &c
	}
	return t, nil
}
