package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const sweepBatch = 100

// Sweeper reconciles transactions a crashed or interrupted saga left behind.
type Sweeper struct {
	repo       Repository
	wallets    WalletPort
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// SweepReport counts what one pass did.
type SweepReport struct {
	Failed               int
	Compensated          int
	ProcessingCandidates int
}

// NewSweeper builds a sweeper that treats rows untouched for staleAfter as abandoned.
func NewSweeper(repo Repository, wallets WalletPort, logger *slog.Logger, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		repo:       repo,
		wallets:    wallets,
		logger:     logger,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile runs one pass:
//   - stale PENDING and VALIDATING rows never reached the rail, so they are
//     failed and their hold is released;
//   - FAILED rows with a pending compensation retry the release;
//   - stale PROCESSING rows are only reported, the rail outcome is unknown.
func (s *Sweeper) Reconcile(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := s.now().Add(-s.staleAfter)

	for _, status := range []Status{StatusPending, StatusValidating} {
		stale, err := s.repo.ListStale(ctx, status, cutoff, sweepBatch)
		if err != nil {
			return report, err
		}
		for i := range stale {
			if s.failAbandoned(ctx, &stale[i]) {
				report.Failed++
			}
		}
	}

	pending, err := s.repo.ListCompensationPending(ctx, sweepBatch)
	if err != nil {
		return report, err
	}
	for i := range pending {
		if s.retryRelease(ctx, &pending[i]) {
			report.Compensated++
		}
	}

	processing, err := s.repo.ListStale(ctx, StatusProcessing, cutoff, sweepBatch)
	if err != nil {
		return report, err
	}
	for _, t := range processing {
		s.logger.Warn("reconciliation candidate", "transaction_id", t.ID, "status", t.Status, "reference", t.ReferenceNumber, "updated_at", t.UpdatedAt)
	}
	report.ProcessingCandidates = len(processing)
	return report, nil
}

// failAbandoned moves t to FAILED with a compensation flagged, and only
// touches the hold once that write has won the version check. A saga that
// wakes up later loses its own write and stops before the rail.
func (s *Sweeper) failAbandoned(ctx context.Context, t *Transaction) bool {
	now := s.now()
	if err := t.Fail(FailureStale, "Abandoned before settlement", now); err != nil {
		return false
	}
	t.CompensationPending = true
	ev, err := transactionEvent(EventTransactionFailed, *t, now)
	if err != nil {
		return false
	}
	if err := s.repo.Update(ctx, t, ev); err != nil {
		// Someone else moved it meanwhile; the next pass sees the new state.
		s.logger.Warn("sweeper update skipped", "transaction_id", t.ID, "error", err)
		return false
	}
	s.logger.Info("abandoned transfer failed", "transaction_id", t.ID)

	s.retryRelease(ctx, t)
	return true
}

// retryRelease releases the hold of a FAILED transaction and clears its
// compensation flag. A row that never recorded its hold is looked up by
// transaction id, the reference every saga reserves under.
func (s *Sweeper) retryRelease(ctx context.Context, t *Transaction) bool {
	if t.ReservationID == "" {
		id, err := s.wallets.OpenReservation(ctx, t.SenderAccountID, t.ID)
		switch {
		case err == nil:
			t.ReservationID = id
		case errors.Is(err, ErrReservationNotFound), errors.Is(err, ErrWalletNotFound):
		default:
			s.logger.Error("compensation retry failed", "alert", "CompensationFailed", "transaction_id", t.ID, "error", err)
			return false
		}
	}
	if t.ReservationID != "" {
		if err := s.wallets.Release(ctx, t.ReservationID); err != nil && !errors.Is(err, ErrAlreadyReleased) {
			s.logger.Error("compensation retry failed", "alert", "CompensationFailed", "transaction_id", t.ID, "reservation_id", t.ReservationID, "error", err)
			return false
		}
	}
	t.CompensationPending = false
	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		s.logger.Warn("sweeper update skipped", "transaction_id", t.ID, "error", err)
		return false
	}
	s.logger.Info("compensation completed", "transaction_id", t.ID, "reservation_id", t.ReservationID)
	return true
}

// Run reconciles every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.Reconcile(ctx)
			if err != nil {
				s.logger.Error("reconcile transfers", "error", err)
				continue
			}
			if report != (SweepReport{}) {
				s.logger.Info("reconcile pass", "failed", report.Failed, "compensated", report.Compensated,
					"processing_candidates", report.ProcessingCandidates)
			}
		}
	}
}
