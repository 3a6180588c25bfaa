package transfer

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/moneyflow/internal/httpx"
	"github.com/congo-pay/moneyflow/internal/money"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type initiateRequest struct {
	SenderAccountID        string `json:"sender_account_id" validate:"required,max=64"`
	RecipientAccountNumber string `json:"recipient_account_number" validate:"required,max=64"`
	Amount                 string `json:"amount" validate:"required,numeric"`
	Currency               string `json:"currency" validate:"omitempty,len=3,alpha"`
	Type                   string `json:"type" validate:"required,oneof=INTERNAL BI_FAST SKN RTGS"`
	Description            string `json:"description" validate:"max=255"`
	PurposeCode            string `json:"purpose_code" validate:"max=16"`
}

// Initiate starts a transfer. The Idempotency-Key header makes retries safe.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	currency := req.Currency
	if currency == "" {
		currency = "IDR"
	}
	amount, err := money.Of(req.Amount, currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.InitiateTransfer(c.UserContext(), Command{
		CallerID:               httpx.CallerID(c),
		SenderAccountID:        req.SenderAccountID,
		RecipientAccountNumber: req.RecipientAccountNumber,
		Amount:                 amount,
		Type:                   Type(req.Type),
		Description:            req.Description,
		PurposeCode:            req.PurposeCode,
		IdempotencyKey:         strings.TrimSpace(c.Get("Idempotency-Key")),
	})
	if err != nil {
		if res.TransactionID == "" {
			return toHTTPError(err)
		}
		// The transaction exists; answer with its terminal state.
		status, msg := statusFor(err)
		return c.Status(status).JSON(fiber.Map{"error": msg, "transfer": res})
	}
	code := http.StatusCreated
	if res.Status != StatusCompleted {
		code = http.StatusAccepted
	}
	return c.Status(code).JSON(res)
}

// Get returns a transfer by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	t, err := h.service.GetTransferStatus(c.UserContext(), c.Params("transferId"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.visible(c, t)
}

// GetByReference returns a transfer by reference number.
func (h *Handler) GetByReference(c *fiber.Ctx) error {
	t, err := h.service.GetTransferByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.visible(c, t)
}

// Cancel cancels a transfer that has not reached the rail.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	t, err := h.service.CancelTransfer(c.UserContext(), c.Params("transferId"), httpx.CallerID(c))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fiber.NewError(http.StatusNotFound, ErrTransferNotFound.Error())
		}
		return toHTTPError(err)
	}
	return c.JSON(t)
}

// Quote returns the static fee and ETA for a type.
func (h *Handler) Quote(c *fiber.Ctx) error {
	typ := Type(strings.ToUpper(c.Query("type", string(TypeInternal))))
	if !typ.Valid() {
		return fiber.NewError(http.StatusBadRequest, "unknown transfer type")
	}
	q := QuoteFor(typ, c.Query("currency", "IDR"))
	return c.JSON(fiber.Map{
		"type":                      typ,
		"fee":                       q.Fee,
		"estimated_completion_secs": int64(q.EstimatedCompletion.Seconds()),
	})
}

func (h *Handler) visible(c *fiber.Ctx, t Transaction) error {
	if err := h.service.AuthorizeView(c.UserContext(), httpx.CallerID(c), t); err != nil {
		return fiber.NewError(http.StatusNotFound, ErrTransferNotFound.Error())
	}
	return c.JSON(t)
}

func toHTTPError(err error) error {
	status, msg := statusFor(err)
	return fiber.NewError(status, msg)
}

// statusFor maps the named failure kinds 1:1; anything else is an opaque 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidTransfer), errors.Is(err, money.ErrInvalidAmount), errors.Is(err, money.ErrCurrencyMismatch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ErrTransferNotFound), errors.Is(err, ErrWalletNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ErrIdempotencyKeyReuse), errors.Is(err, ErrNotCancellable), errors.Is(err, ErrTransferCancelled):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrWalletFrozen), errors.Is(err, ErrWalletClosed),
		errors.Is(err, ErrRecipientRejected):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ErrRailTimeout):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, ErrRailUnavailable), errors.Is(err, ErrRailRejected):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, ErrInternal.Error()
	}
}
