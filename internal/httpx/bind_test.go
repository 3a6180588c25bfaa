package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `json:"name" validate:"required"`
	Amount string `json:"amount" validate:"required,numeric"`
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		var req sample
		if err := Bind(c, &req); err != nil {
			return err
		}
		return c.SendString(req.Name)
	})
	return app
}

func TestBind(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		text   string
	}{
		{"valid", `{"name":"a","amount":"10.50"}`, http.StatusOK, "a"},
		{"missing field", `{"amount":"1"}`, http.StatusBadRequest, "name failed required"},
		{"bad number", `{"name":"a","amount":"ten"}`, http.StatusBadRequest, "amount failed numeric"},
		{"broken json", `{"name":`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := newApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), tt.text)
		})
	}
}
