// Package httpx holds request decoding shared by the HTTP handlers.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind parses the JSON body into dst and runs its `validate` tags.
// Failures come back as 400 fiber errors.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return Validate(dst)
}

// Validate runs struct validation and flattens the field errors.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fiber.NewError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

// CallerID returns the authenticated user id set by the JWT middleware.
func CallerID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}
