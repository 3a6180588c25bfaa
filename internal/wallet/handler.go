package wallet

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/moneyflow/internal/httpx"
	"github.com/congo-pay/moneyflow/internal/ledger"
	"github.com/congo-pay/moneyflow/internal/money"
)

// Handler exposes wallet HTTP endpoints. Every route acts on the caller's own wallet.
type Handler struct {
	engine *Engine
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type createRequest struct {
	AccountID string `json:"account_id" validate:"required,max=64"`
	Currency  string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type reserveRequest struct {
	Amount      string `json:"amount" validate:"required,numeric"`
	ReferenceID string `json:"reference_id" validate:"required,max=128"`
}

type statusRequest struct {
	Reason string `json:"reason" validate:"max=256"`
}

type walletResponse struct {
	ID               string      `json:"id"`
	AccountID        string      `json:"account_id"`
	OwnerID          string      `json:"owner_id"`
	Currency         string      `json:"currency"`
	Balance          money.Money `json:"balance"`
	ReservedBalance  money.Money `json:"reserved_balance"`
	AvailableBalance money.Money `json:"available_balance"`
	Status           Status      `json:"status"`
	Version          int64       `json:"version"`
}

func toWalletResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:               w.ID,
		AccountID:        w.AccountID,
		OwnerID:          w.OwnerID,
		Currency:         w.Currency,
		Balance:          w.Balance,
		ReservedBalance:  w.Reserved,
		AvailableBalance: w.Available(),
		Status:           w.Status,
		Version:          w.Version,
	}
}

// Create provisions a wallet for the authenticated owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	w, err := h.engine.CreateWallet(c.UserContext(), CreateInput{
		AccountID: req.AccountID,
		OwnerID:   httpx.CallerID(c),
		Currency:  req.Currency,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// Get returns the wallet with its balances.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	return c.JSON(toWalletResponse(w))
}

// Balance returns ledger and available balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"account_id":        w.AccountID,
		"balance":           w.Balance,
		"available_balance": w.Available(),
		"reserved_balance":  w.Reserved,
	})
}

// History pages ledger entries newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	page, err := h.engine.GetTransactionHistory(c.UserContext(), w.AccountID, c.QueryInt("page", 1), c.QueryInt("size", 20))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{
		"items":       page.Items,
		"page":        page.Page,
		"size":        page.Size,
		"total":       page.Total,
		"total_pages": page.TotalPages(),
	})
}

// Reserve places a hold on the caller's wallet.
func (h *Handler) Reserve(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	var req reserveRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	amount, err := money.Of(req.Amount, w.Currency)
	if err != nil {
		return toHTTPError(err)
	}
	res, err := h.engine.Reserve(c.UserContext(), w.AccountID, amount, req.ReferenceID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(res)
}

// GetReservation returns a reservation, open or closed.
func (h *Handler) GetReservation(c *fiber.Ctx) error {
	res, err := h.ownedReservation(c)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Commit settles a reservation and returns the DEBIT entry.
func (h *Handler) Commit(c *fiber.Ctx) error {
	res, err := h.ownedReservation(c)
	if err != nil {
		return err
	}
	entry, err := h.engine.CommitReservation(c.UserContext(), res.ID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(entry)
}

// Release drops a reservation.
func (h *Handler) Release(c *fiber.Ctx) error {
	res, err := h.ownedReservation(c)
	if err != nil {
		return err
	}
	if err := h.engine.ReleaseReservation(c.UserContext(), res.ID); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Freeze blocks new reservations on the wallet.
func (h *Handler) Freeze(c *fiber.Ctx) error {
	return h.changeStatus(c, h.engine.Freeze)
}

// Unfreeze reactivates the wallet.
func (h *Handler) Unfreeze(c *fiber.Ctx) error {
	return h.changeStatus(c, h.engine.Unfreeze)
}

// Close closes an empty wallet.
func (h *Handler) Close(c *fiber.Ctx) error {
	return h.changeStatus(c, h.engine.Close)
}

func (h *Handler) changeStatus(c *fiber.Ctx, op func(ctx context.Context, accountID, reason string) (Wallet, error)) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if len(c.Body()) > 0 {
		if err := httpx.Bind(c, &req); err != nil {
			return err
		}
	}
	updated, err := op(c.UserContext(), w.AccountID, req.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(toWalletResponse(updated))
}

func (h *Handler) owned(c *fiber.Ctx) (Wallet, error) {
	w, err := h.engine.GetWallet(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return Wallet{}, toHTTPError(err)
	}
	if w.OwnerID != httpx.CallerID(c) {
		// Do not reveal other owners' wallets.
		return Wallet{}, fiber.NewError(http.StatusNotFound, ErrWalletNotFound.Error())
	}
	return w, nil
}

func (h *Handler) ownedReservation(c *fiber.Ctx) (Reservation, error) {
	res, err := h.engine.GetReservation(c.UserContext(), c.Params("reservationId"))
	if err != nil {
		return Reservation{}, toHTTPError(err)
	}
	w, err := h.engine.GetWallet(c.UserContext(), res.AccountID)
	if err != nil || w.OwnerID != httpx.CallerID(c) {
		return Reservation{}, fiber.NewError(http.StatusNotFound, ErrReservationNotFound.Error())
	}
	return res, nil
}

func toHTTPError(err error) error {
	var insufficient *InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		return fiber.NewError(http.StatusUnprocessableEntity, insufficient.Error())
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrReservationNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrWalletExists),
		errors.Is(err, ErrReservationClosed),
		errors.Is(err, ErrReferenceConflict),
		errors.Is(err, ErrConcurrentModification),
		errors.Is(err, ErrDuplicateCredit):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrWalletFrozen), errors.Is(err, ErrWalletClosed), errors.Is(err, ErrWalletNotEmpty),
		errors.Is(err, ErrInvalidStatusChange):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, money.ErrInvalidAmount), errors.Is(err, money.ErrCurrencyMismatch):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrReplayMismatch), errors.Is(err, ErrInvariantViolation):
		return fiber.NewError(http.StatusInternalServerError, "ledger integrity check failed")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
