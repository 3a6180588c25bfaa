package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/moneyflow/internal/funding"
)

// RegisterFundingRoutes wires card funding/withdrawal endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, idem fiber.Handler) {
	r.Post("/wallets/:accountId/fund/card", idem, h.CardIn)
	r.Post("/wallets/:accountId/withdraw/card", idem, h.CardOut)
}
