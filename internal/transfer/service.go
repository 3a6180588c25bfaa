package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/moneyflow/internal/events"
	"github.com/congo-pay/moneyflow/internal/money"
)

const defaultRailTimeout = 30 * time.Second

// Service is the transfer orchestrator. It drives each transaction through
// reserve, settlement and commit, compensating with a release when
// settlement fails.
type Service struct {
	repo        Repository
	wallets     WalletPort
	rails       Rails
	auth        Authorizer
	logger      *slog.Logger
	signal      events.Signal
	railTimeout time.Duration
	now         func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRailTimeout bounds every rail call.
func WithRailTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.railTimeout = d
		}
	}
}

// WithAuthorizer replaces the owner check.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) { s.auth = a }
}

// WithSignal wakes an outbox relay after each write.
func WithSignal(sig events.Signal) Option {
	return func(s *Service) {
		if sig != nil {
			s.signal = sig
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the orchestrator.
func NewService(repo Repository, wallets WalletPort, rails Rails, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		wallets:     wallets,
		rails:       rails,
		auth:        OwnerAuthorizer{Wallets: wallets},
		logger:      logger,
		signal:      events.NopSignal{},
		railTimeout: defaultRailTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Command is a transfer request.
type Command struct {
	CallerID               string
	SenderAccountID        string
	RecipientAccountNumber string
	Amount                 money.Money
	Type                   Type
	Description            string
	PurposeCode            string
	IdempotencyKey         string
}

// Result is what callers get back, on success and on failure.
type Result struct {
	TransactionID           string      `json:"transaction_id"`
	ReferenceNumber         string      `json:"reference_number"`
	Status                  Status      `json:"status"`
	Fee                     money.Money `json:"fee"`
	EstimatedCompletionTime time.Time   `json:"estimated_completion_time"`
	FailureReason           string      `json:"failure_reason,omitempty"`
}

func resultOf(t Transaction) Result {
	q := QuoteFor(t.Type, t.Amount.Currency())
	return Result{
		TransactionID:           t.ID,
		ReferenceNumber:         t.ReferenceNumber,
		Status:                  t.Status,
		Fee:                     q.Fee,
		EstimatedCompletionTime: t.CreatedAt.Add(q.EstimatedCompletion),
		FailureReason:           t.FailureReason,
	}
}

// InitiateTransfer runs the saga for cmd. A repeated idempotency key returns
// the stored outcome without new financial effects.
func (s *Service) InitiateTransfer(ctx context.Context, cmd Command) (Result, error) {
	if err := validateCommand(cmd); err != nil {
		return Result{}, err
	}
	hash := requestHash(cmd)

	if cmd.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
		switch {
		case err == nil:
			return s.replay(existing, hash)
		case !errors.Is(err, ErrTransferNotFound):
			return Result{}, err
		}
	}

	if err := s.auth.Authorize(ctx, cmd.CallerID, cmd.SenderAccountID); err != nil {
		return Result{}, err
	}

	now := s.now()
	t := Transaction{
		ID:                     uuid.NewString(),
		ReferenceNumber:        newReferenceNumber(now),
		SenderAccountID:        cmd.SenderAccountID,
		RecipientAccountNumber: cmd.RecipientAccountNumber,
		Amount:                 cmd.Amount,
		Description:            cmd.Description,
		PurposeCode:            cmd.PurposeCode,
		Type:                   cmd.Type,
		Status:                 StatusPending,
		IdempotencyKey:         cmd.IdempotencyKey,
		RequestHash:            hash,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	ev, err := transactionEvent(EventTransactionInitiated, t, now)
	if err != nil {
		return Result{}, err
	}
	if err := s.repo.Create(ctx, &t, ev); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			winner, err := s.repo.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
			if err != nil {
				return Result{}, err
			}
			return s.replay(winner, hash)
		}
		return Result{}, err
	}
	s.signal.Notify()
	s.logger.Info("transfer initiated", "transaction_id", t.ID, "reference", t.ReferenceNumber, "type", t.Type, "amount", t.Amount.String())

	// Once the row exists the saga runs to a resting state even if the caller goes away.
	return s.run(context.WithoutCancel(ctx), &t)
}

func (s *Service) run(ctx context.Context, t *Transaction) (Result, error) {
	resp, err := s.wallets.Reserve(ctx, ReserveRequest{AccountID: t.SenderAccountID, Amount: t.Amount, ReferenceID: t.ID})
	if err != nil {
		code, reason, known := walletFailure(err)
		if !known {
			s.logger.Error("reserve failed", "transaction_id", t.ID, "error", err)
		}
		return s.fail(ctx, t, code, reason)
	}
	t.ReservationID = resp.ReservationID

	if err := s.advance(ctx, t, StatusValidating); err != nil {
		return s.interrupted(ctx, t, err)
	}
	if err := s.advance(ctx, t, StatusProcessing); err != nil {
		return s.interrupted(ctx, t, err)
	}

	if code, reason, ok := s.settle(ctx, t); !ok {
		return s.compensate(ctx, t, code, reason)
	}

	if err := s.wallets.Commit(ctx, t.ReservationID); err != nil && !errors.Is(err, ErrAlreadyCommitted) {
		// Funds left the rail side already; the row stays PROCESSING for the sweeper to report.
		s.logger.Error("commit after settlement failed", "transaction_id", t.ID, "reservation_id", t.ReservationID, "error", err)
		return resultOf(*t), ErrInternal
	}

	now := s.now()
	if err := t.TransitionTo(StatusCompleted, now); err != nil {
		return resultOf(*t), err
	}
	ev, err := transactionEvent(EventTransactionCompleted, *t, now)
	if err != nil {
		return resultOf(*t), err
	}
	if err := s.repo.Update(ctx, t, ev); err != nil {
		s.logger.Error("persist completed transfer", "transaction_id", t.ID, "error", err)
		return resultOf(*t), ErrInternal
	}
	s.signal.Notify()
	s.logger.Info("transfer completed", "transaction_id", t.ID, "reference", t.ReferenceNumber, "rail_reference", t.RailReference)
	return resultOf(*t), nil
}

// settle moves the money to the recipient: an internal credit or a rail call.
func (s *Service) settle(ctx context.Context, t *Transaction) (FailureCode, string, bool) {
	if !t.Type.External() {
		err := s.wallets.Credit(ctx, CreditRequest{
			AccountID:   t.RecipientAccountNumber,
			Amount:      t.Amount,
			ReferenceID: t.ID,
			Description: "transfer " + t.ReferenceNumber,
		})
		if err == nil {
			return FailureNone, "", true
		}
		if errors.Is(err, ErrWalletNotFound) || errors.Is(err, ErrWalletClosed) || errors.Is(err, ErrInvalidTransfer) {
			return FailureRecipientRejected, "Recipient account cannot receive funds", false
		}
		s.logger.Error("recipient credit failed", "transaction_id", t.ID, "error", err)
		return FailureInternal, "Internal error", false
	}

	rail, ok := s.rails[t.Type]
	if !ok {
		return FailureRailUnavailable, fmt.Sprintf("No rail configured for %s", t.Type), false
	}
	railCtx, cancel := context.WithTimeout(ctx, s.railTimeout)
	defer cancel()

	resp, err := rail.Transfer(railCtx, RailRequest{
		ReferenceNumber: t.ReferenceNumber,
		Amount:          t.Amount,
		Currency:        t.Amount.Currency(),
		SourceRef:       t.SenderAccountID,
		DestinationRef:  t.RecipientAccountNumber,
		PurposeCode:     t.PurposeCode,
	})
	switch {
	case err == nil && resp.Status == RailSuccess:
		t.RailReference = resp.RailReference
		return FailureNone, "", true
	case err == nil:
		t.RailReference = resp.RailReference
		return FailureRailRejected, "Rail rejected transfer: " + resp.Message, false
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrRailTimeout):
		s.logger.Warn("rail timeout", "transaction_id", t.ID, "type", t.Type, "timeout", s.railTimeout)
		return FailureRailTimeout, "Rail did not answer in time", false
	default:
		s.logger.Warn("rail unavailable", "transaction_id", t.ID, "type", t.Type, "error", err)
		return FailureRailUnavailable, "Rail unavailable: " + err.Error(), false
	}
}

// compensate releases the hold and fails the transaction with the original reason.
func (s *Service) compensate(ctx context.Context, t *Transaction, code FailureCode, reason string) (Result, error) {
	if err := s.wallets.Release(ctx, t.ReservationID); err != nil && !errors.Is(err, ErrAlreadyReleased) {
		t.CompensationPending = true
		s.logger.Error("compensation failed",
			"alert", "CompensationFailed",
			"transaction_id", t.ID,
			"reservation_id", t.ReservationID,
			"amount", t.Amount.String(),
			"error", err)
	}
	return s.fail(ctx, t, code, reason)
}

func (s *Service) fail(ctx context.Context, t *Transaction, code FailureCode, reason string) (Result, error) {
	now := s.now()
	if err := t.Fail(code, reason, now); err != nil {
		return resultOf(*t), err
	}
	ev, err := transactionEvent(EventTransactionFailed, *t, now)
	if err != nil {
		return resultOf(*t), err
	}
	if err := s.repo.Update(ctx, t, ev); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return s.interrupted(ctx, t, err)
		}
		s.logger.Error("persist failed transfer", "transaction_id", t.ID, "error", err)
		return resultOf(*t), ErrInternal
	}
	s.signal.Notify()
	s.logger.Info("transfer failed", "transaction_id", t.ID, "code", code, "reason", reason, "compensation_pending", t.CompensationPending)
	return resultOf(*t), errorForCode(code)
}

func (s *Service) advance(ctx context.Context, t *Transaction, next Status) error {
	if err := t.TransitionTo(next, s.now()); err != nil {
		return err
	}
	return s.repo.Update(ctx, t)
}

// interrupted handles a lost write race. Before the rail call a running saga
// can only be overtaken by a cancellation or by the sweeper failing it as
// abandoned; either way our hold is released in case the other writer did
// not know about it yet.
func (s *Service) interrupted(ctx context.Context, t *Transaction, cause error) (Result, error) {
	if !errors.Is(cause, ErrVersionConflict) {
		s.logger.Error("transfer step not persisted", "transaction_id", t.ID, "status", t.Status, "error", cause)
		return resultOf(*t), ErrInternal
	}
	current, err := s.repo.Get(ctx, t.ID)
	if err != nil {
		return resultOf(*t), err
	}
	if (current.Status == StatusCancelled || current.Status == StatusFailed) && t.ReservationID != "" {
		if err := s.wallets.Release(ctx, t.ReservationID); err != nil && !errors.Is(err, ErrAlreadyReleased) {
			s.logger.Error("compensation failed", "alert", "CompensationFailed", "transaction_id", t.ID, "reservation_id", t.ReservationID, "error", err)
			current.CompensationPending = true
			current.ReservationID = t.ReservationID
			current.UpdatedAt = s.now()
			if err := s.repo.Update(ctx, &current); err != nil {
				s.logger.Error("flag compensation pending", "transaction_id", t.ID, "error", err)
			}
		}
	}
	*t = current
	return s.outcome(current)
}

func (s *Service) replay(t Transaction, hash string) (Result, error) {
	if t.RequestHash != hash {
		return Result{}, ErrIdempotencyKeyReuse
	}
	s.logger.Info("idempotent replay", "transaction_id", t.ID, "status", t.Status)
	return s.outcome(t)
}

func (s *Service) outcome(t Transaction) (Result, error) {
	switch t.Status {
	case StatusFailed:
		return resultOf(t), errorForCode(t.FailureCode)
	case StatusCancelled:
		return resultOf(t), ErrTransferCancelled
	default:
		return resultOf(t), nil
	}
}

// GetTransferStatus returns a transaction by id.
func (s *Service) GetTransferStatus(ctx context.Context, id string) (Transaction, error) {
	return s.repo.Get(ctx, id)
}

// GetTransferByReference returns a transaction by its reference number.
func (s *Service) GetTransferByReference(ctx context.Context, referenceNumber string) (Transaction, error) {
	return s.repo.GetByReference(ctx, referenceNumber)
}

// AuthorizeView checks that callerID may see t.
func (s *Service) AuthorizeView(ctx context.Context, callerID string, t Transaction) error {
	return s.auth.Authorize(ctx, callerID, t.SenderAccountID)
}

// CancelTransfer cancels a transaction that has not reached the rail yet and
// releases its hold. Cancelling twice is not an error.
func (s *Service) CancelTransfer(ctx context.Context, id, callerID string) (Transaction, error) {
	for attempt := 0; attempt < 5; attempt++ {
		t, err := s.repo.Get(ctx, id)
		if err != nil {
			return Transaction{}, err
		}
		if err := s.auth.Authorize(ctx, callerID, t.SenderAccountID); err != nil {
			return Transaction{}, err
		}
		if t.Status == StatusCancelled {
			return t, nil
		}
		if !t.Status.Cancellable() {
			return t, fmt.Errorf("%w: status %s", ErrNotCancellable, t.Status)
		}

		now := s.now()
		if err := t.TransitionTo(StatusCancelled, now); err != nil {
			return t, err
		}
		t.FailureReason = "Cancelled by caller"
		ev, err := transactionEvent(EventTransactionCancelled, t, now)
		if err != nil {
			return t, err
		}
		if err := s.repo.Update(ctx, &t, ev); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return t, err
		}
		s.signal.Notify()
		s.logger.Info("transfer cancelled", "transaction_id", t.ID, "caller", callerID)

		if t.ReservationID != "" {
			bg := context.WithoutCancel(ctx)
			if err := s.wallets.Release(bg, t.ReservationID); err != nil && !errors.Is(err, ErrAlreadyReleased) {
				s.logger.Error("compensation failed", "alert", "CompensationFailed", "transaction_id", t.ID, "reservation_id", t.ReservationID, "error", err)
				t.CompensationPending = true
				t.UpdatedAt = s.now()
				if err := s.repo.Update(bg, &t); err != nil {
					s.logger.Error("flag compensation pending", "transaction_id", t.ID, "error", err)
				}
			}
		}
		return t, nil
	}
	return Transaction{}, fmt.Errorf("cancel transfer %s: %w", id, ErrVersionConflict)
}

func validateCommand(cmd Command) error {
	switch {
	case strings.TrimSpace(cmd.SenderAccountID) == "":
		return fmt.Errorf("%w: sender account is required", ErrInvalidTransfer)
	case strings.TrimSpace(cmd.RecipientAccountNumber) == "":
		return fmt.Errorf("%w: recipient account is required", ErrInvalidTransfer)
	case !cmd.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransfer, cmd.Type)
	case !cmd.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransfer)
	case cmd.Type == TypeInternal && cmd.SenderAccountID == cmd.RecipientAccountNumber:
		return fmt.Errorf("%w: sender and recipient are the same account", ErrInvalidTransfer)
	}
	return nil
}

// requestHash fingerprints the payload an idempotency key was first used with.
func requestHash(cmd Command) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		cmd.CallerID,
		cmd.SenderAccountID,
		cmd.RecipientAccountNumber,
		cmd.Amount.StringFixed(),
		cmd.Amount.Currency(),
		string(cmd.Type),
		cmd.Description,
		cmd.PurposeCode,
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func newReferenceNumber(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "TRX" + at.Format("20060102") + id[:12]
}
