package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestParseToken(t *testing.T) {
	good := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("alice"))
	sub, err := ParseToken(good, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	expired := validClaims("alice")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := map[string]string{
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("alice")),
		"expired":      sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"no subject":   sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("")),
		"unsigned":     sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims("alice")),
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token, []byte(testSecret))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTAuthSetsCaller(t *testing.T) {
	app := fiber.New()
	app.Use(JWTAuth(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(CallerKey).(string))
	})

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("alice")))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	missing, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, missing.StatusCode)

	bad := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	bad.Header.Set(fiber.HeaderAuthorization, "Bearer nope")
	resp, err = app.Test(bad)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(RequestIDHeader).(string))
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header.Get(RequestIDHeader))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
}
