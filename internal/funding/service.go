package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/congo-pay/moneyflow/internal/ledger"
	"github.com/congo-pay/moneyflow/internal/money"
	"github.com/congo-pay/moneyflow/internal/wallet"
)

const (
	StatusCompleted = "COMPLETED"
	StatusDuplicate = "DUPLICATE"
)

var (
	// ErrInvalidCard is returned for malformed card numbers.
	ErrInvalidCard = errors.New("invalid card number")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Service moves money between cards and wallets through the wallet engine.
type Service struct {
	wallets  *wallet.Engine
	acquirer Acquirer
	logger   *slog.Logger
}

// NewService builds a funding service. A nil acquirer approves everything.
func NewService(wallets *wallet.Engine, acquirer Acquirer, logger *slog.Logger) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet engine is required")
	}
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	return &Service{wallets: wallets, acquirer: acquirer, logger: logger}, nil
}

// CardInInput captures the required data for a card top-up.
type CardInInput struct {
	AccountID  string
	Amount     string
	ClientTxID string
	CardNumber string
	Expiry     string
	CVV        string
}

// CardOutInput captures the required data for a card withdrawal.
type CardOutInput struct {
	AccountID  string
	Amount     string
	ClientTxID string
	CardNumber string
}

// FundingResult represents the domain outcome of a card operation.
type FundingResult struct {
	TransactionID     string
	Status            string
	Amount            money.Money
	WalletBalance     money.Money
	AcquirerReference string
	CompletedAt       time.Time
}

func cardInReference(clientTxID string) string  { return "card-in:" + clientTxID }
func cardOutReference(clientTxID string) string { return "card-out:" + clientTxID }

// CardIn authorizes a card top-up and credits the wallet once per client
// transaction id. A replay returns the original credit with StatusDuplicate.
func (s *Service) CardIn(ctx context.Context, input CardInInput) (FundingResult, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return FundingResult{}, err
	}
	w, err := s.wallets.GetWallet(ctx, input.AccountID)
	if err != nil {
		return FundingResult{}, err
	}
	amount, err := positive(input.Amount, w.Currency)
	if err != nil {
		return FundingResult{}, err
	}
	ref := cardInReference(input.ClientTxID)

	// Replays must not reach the acquirer a second time.
	if prior, err := s.wallets.FindCredit(ctx, w.AccountID, ref); err == nil {
		return s.duplicate(ctx, w.AccountID, prior)
	} else if !errors.Is(err, ledger.ErrEntryNotFound) {
		return FundingResult{}, err
	}

	decision, err := s.acquirer.AuthorizeCardIn(ctx, CardInAuthorization{
		CardNumber: input.CardNumber,
		Expiry:     input.Expiry,
		CVV:        input.CVV,
		Amount:     amount,
		ClientTxID: input.ClientTxID,
	})
	if err != nil {
		return FundingResult{}, err
	}

	entry, err := s.wallets.Credit(ctx, wallet.CreditInput{
		AccountID:     w.AccountID,
		Amount:        amount,
		ReferenceID:   ref,
		ReferenceType: ledger.ReferenceCardFunding,
		Description:   "card top-up " + decision.Reference,
	})
	if errors.Is(err, wallet.ErrDuplicateCredit) {
		return s.duplicate(ctx, w.AccountID, entry)
	}
	if err != nil {
		return FundingResult{}, err
	}
	s.logger.Info("card top-up credited", "account_id", w.AccountID, "client_tx_id", input.ClientTxID, "acquirer_ref", decision.Reference, "amount", amount.String())
	return FundingResult{
		TransactionID:     entry.ID,
		Status:            StatusCompleted,
		Amount:            amount,
		WalletBalance:     entry.BalanceAfter,
		AcquirerReference: decision.Reference,
		CompletedAt:       entry.CreatedAt,
	}, nil
}

// CardOut holds the amount, asks the acquirer to push it to the card and
// settles the hold. A declined payout releases the hold.
func (s *Service) CardOut(ctx context.Context, input CardOutInput) (FundingResult, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return FundingResult{}, err
	}
	w, err := s.wallets.GetWallet(ctx, input.AccountID)
	if err != nil {
		return FundingResult{}, err
	}
	amount, err := positive(input.Amount, w.Currency)
	if err != nil {
		return FundingResult{}, err
	}

	res, err := s.wallets.Reserve(ctx, w.AccountID, amount, cardOutReference(input.ClientTxID))
	if err != nil {
		return FundingResult{}, err
	}

	decision, err := s.acquirer.AuthorizeCardOut(ctx, CardOutAuthorization{
		CardNumber: input.CardNumber,
		Amount:     amount,
		ClientTxID: input.ClientTxID,
	})
	if err != nil {
		if relErr := s.wallets.ReleaseReservation(context.WithoutCancel(ctx), res.ID); relErr != nil {
			s.logger.Error("card payout hold not released", "reservation_id", res.ID, "error", relErr)
		}
		return FundingResult{}, err
	}

	entry, err := s.wallets.CommitReservation(ctx, res.ID)
	if err != nil {
		return FundingResult{}, err
	}
	s.logger.Info("card payout settled", "account_id", w.AccountID, "client_tx_id", input.ClientTxID, "acquirer_ref", decision.Reference, "amount", amount.String())
	return FundingResult{
		TransactionID:     entry.ID,
		Status:            StatusCompleted,
		Amount:            amount,
		WalletBalance:     entry.BalanceAfter,
		AcquirerReference: decision.Reference,
		CompletedAt:       entry.CreatedAt,
	}, nil
}

func (s *Service) duplicate(ctx context.Context, accountID string, prior ledger.Entry) (FundingResult, error) {
	balance, err := s.wallets.GetBalance(ctx, accountID)
	if err != nil {
		return FundingResult{}, err
	}
	return FundingResult{
		TransactionID: prior.ID,
		Status:        StatusDuplicate,
		Amount:        prior.Amount,
		WalletBalance: balance,
		CompletedAt:   prior.CreatedAt,
	}, wallet.ErrDuplicateCredit
}

func positive(raw, currency string) (money.Money, error) {
	amount, err := money.Of(raw, currency)
	if err != nil {
		return money.Money{}, err
	}
	if !amount.IsPositive() {
		return money.Money{}, ErrInvalidAmount
	}
	return amount, nil
}

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return fmt.Errorf("%w: must be between 12 and 19 digits", ErrInvalidCard)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: must be numeric", ErrInvalidCard)
		}
	}
	return nil
}
