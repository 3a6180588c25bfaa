package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/moneyflow/internal/httpx"
	"github.com/congo-pay/moneyflow/internal/money"
	"github.com/congo-pay/moneyflow/internal/wallet"
)

// Handler exposes HTTP endpoints for card funding flows.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CardIn processes wallet top-ups funded by cards.
func (h *Handler) CardIn(c *fiber.Ctx) error {
	accountID, err := h.ownedAccount(c)
	if err != nil {
		return err
	}
	var req CardInRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}

	result, err := h.service.CardIn(c.UserContext(), CardInInput{
		AccountID:  accountID,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrDuplicateCredit) {
			return c.Status(http.StatusOK).JSON(toResponse(result))
		}
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(result))
}

// CardOut processes wallet withdrawals to cards.
func (h *Handler) CardOut(c *fiber.Ctx) error {
	accountID, err := h.ownedAccount(c)
	if err != nil {
		return err
	}
	var req CardOutRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}

	result, err := h.service.CardOut(c.UserContext(), CardOutInput{
		AccountID:  accountID,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
		CardNumber: req.CardNumber,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(result))
}

func (h *Handler) ownedAccount(c *fiber.Ctx) (string, error) {
	accountID := c.Params("accountId")
	w, err := h.service.wallets.GetWallet(c.UserContext(), accountID)
	if err != nil || w.OwnerID != httpx.CallerID(c) {
		return "", fiber.NewError(http.StatusNotFound, wallet.ErrWalletNotFound.Error())
	}
	return accountID, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCard), errors.Is(err, ErrInvalidAmount), errors.Is(err, money.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCardDeclined):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, wallet.ErrInsufficientBalance),
		errors.Is(err, wallet.ErrWalletFrozen),
		errors.Is(err, wallet.ErrWalletClosed):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, wallet.ErrReferenceConflict), errors.Is(err, wallet.ErrReservationClosed):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func toResponse(result FundingResult) FundingResponse {
	return FundingResponse{
		TransactionID:     result.TransactionID,
		Status:            result.Status,
		Amount:            result.Amount,
		WalletBalance:     result.WalletBalance,
		AcquirerReference: result.AcquirerReference,
		CompletedAt:       result.CompletedAt,
	}
}
