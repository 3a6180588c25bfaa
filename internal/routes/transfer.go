package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/moneyflow/internal/transfer"
)

// RegisterTransferRoutes wires transfer endpoints. Static segments are
// registered before :transferId so they are not captured by it.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler, idem fiber.Handler) {
	r.Post("/transfers", idem, h.Initiate)
	r.Get("/transfers/quote", h.Quote)
	r.Get("/transfers/reference/:reference", h.GetByReference)
	r.Get("/transfers/:transferId", h.Get)
	r.Post("/transfers/:transferId/cancel", h.Cancel)
}
