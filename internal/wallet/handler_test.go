package wallet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerApp(t *testing.T) (*fiber.App, *Engine) {
	t.Helper()
	e, _ := newTestEngine(t)
	h := NewHandler(e)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User"))
		return c.Next()
	})
	app.Post("/wallets", h.Create)
	app.Get("/wallets/:accountId", h.Get)
	app.Get("/wallets/:accountId/balance", h.Balance)
	app.Get("/wallets/:accountId/entries", h.History)
	app.Post("/wallets/:accountId/reservations", h.Reserve)
	app.Post("/wallets/:accountId/freeze", h.Freeze)
	app.Get("/reservations/:reservationId", h.GetReservation)
	app.Post("/reservations/:reservationId/commit", h.Commit)
	app.Post("/reservations/:reservationId/release", h.Release)
	return app, e
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHandlerReserveAndCommit(t *testing.T) {
	app, e := newHandlerApp(t)

	status, _ := do(t, app, http.MethodPost, "/wallets", "u1", `{"account_id":"acc-1"}`)
	require.Equal(t, http.StatusCreated, status)
	_, err := SeedBalance(context.Background(), e, "acc-1", idr("100"))
	require.NoError(t, err)

	status, res := do(t, app, http.MethodPost, "/wallets/acc-1/reservations", "u1", `{"amount":"40","reference_id":"ref1"}`)
	require.Equal(t, http.StatusCreated, status)
	id, _ := res["id"].(string)
	require.NotEmpty(t, id)

	status, bal := do(t, app, http.MethodGet, "/wallets/acc-1/balance", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "60.00", bal["available_balance"].(map[string]any)["amount"])

	status, entry := do(t, app, http.MethodPost, "/reservations/"+id+"/commit", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "DEBIT", entry["entry_type"])

	status, _ = do(t, app, http.MethodPost, "/reservations/"+id+"/commit", "u1", "")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = do(t, app, http.MethodPost, "/wallets/acc-1/reservations", "u1", `{"amount":"80","reference_id":"ref2"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, page := do(t, app, http.MethodGet, "/wallets/acc-1/entries?page=1&size=1", "u1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, page["total"])
	assert.EqualValues(t, 2, page["total_pages"])
}

func TestHandlerHidesOtherOwnersWallets(t *testing.T) {
	app, _ := newHandlerApp(t)
	status, _ := do(t, app, http.MethodPost, "/wallets", "u1", `{"account_id":"acc-1"}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = do(t, app, http.MethodGet, "/wallets/acc-1", "intruder", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, app, http.MethodPost, "/wallets/acc-1/freeze", "intruder", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandlerValidationAndStatus(t *testing.T) {
	app, _ := newHandlerApp(t)
	status, _ := do(t, app, http.MethodPost, "/wallets", "u1", `{"account_id":"acc-1","currency":"RUPIAH"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/wallets", "u1", `{"account_id":"acc-1"}`)
	require.Equal(t, http.StatusCreated, status)
	status, _ = do(t, app, http.MethodPost, "/wallets", "u1", `{"account_id":"acc-1"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body := do(t, app, http.MethodPost, "/wallets/acc-1/freeze", "u1", `{"reason":"lost phone"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FROZEN", body["status"])

	status, _ = do(t, app, http.MethodPost, "/wallets/acc-1/reservations", "u1", `{"amount":"1","reference_id":"r"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = do(t, app, http.MethodPost, "/wallets/acc-1/reservations", "u1", `{"amount":"abc","reference_id":"r"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}
