package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// RequestContext gives every request a context derived from base, so canceling
// base aborts in-flight work. fasthttp does not report client disconnects, so a
// request's context ends only with base or when the handler returns.
func RequestContext(base context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithCancel(base)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
