package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/moneyflow/internal/wallet"
)

// RegisterWalletRoutes wires wallet and reservation endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, idem fiber.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:accountId", h.Get)
	r.Get("/wallets/:accountId/balance", h.Balance)
	r.Get("/wallets/:accountId/entries", h.History)
	r.Post("/wallets/:accountId/reservations", idem, h.Reserve)
	r.Post("/wallets/:accountId/freeze", h.Freeze)
	r.Post("/wallets/:accountId/unfreeze", h.Unfreeze)
	r.Post("/wallets/:accountId/close", h.Close)

	r.Get("/reservations/:reservationId", h.GetReservation)
	r.Post("/reservations/:reservationId/commit", h.Commit)
	r.Post("/reservations/:reservationId/release", h.Release)
}
