package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"roastreel/internal/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RespondWithError sends a JSON error response.
func RespondWithError(c *fiber.Ctx, statusCode int, code apperr.Kind, message string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error: message,
		Code:  string(code),
	})
}

// RespondWithAppError maps err to its status code and kind. Errors without a
// kind are reported as internal.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, apperr.StatusOf(err), apperr.KindOf(err), err.Error())
}

// RespondWithJSON sends a JSON success response.
func RespondWithJSON(c *fiber.Ctx, statusCode int, data interface{}) error {
	return c.Status(statusCode).JSON(data)
}

// FormatValidationErrors formats validation errors from validator/v10.
func FormatValidationErrors(err error) []string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		if err == nil {
			return nil
		}
		return []string{err.Error()}
	}

	var messages []string
	for _, fieldErr := range validationErrs {
		element := fmt.Sprintf("Field '%s' failed on the '%s' tag", fieldErr.Field(), fieldErr.Tag())
		if fieldErr.Param() != "" {
			element = fmt.Sprintf("%s (value: %s)", element, fieldErr.Param())
		}
		messages = append(messages, element)
	}
	return messages
}

// SanitizeInput trims surrounding whitespace.
func SanitizeInput(input string) string {
	return strings.TrimSpace(input)
}
