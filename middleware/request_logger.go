package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request id back to the caller.
const RequestIDHeader = "X-Request-ID"

// RequestLogger creates a new middleware handler for structured request logging with Logrus.
func RequestLogger(log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals("requestid", requestID)
		c.Set(RequestIDHeader, requestID)

		err := c.Next()

		latency := time.Since(start)
		statusCode := c.Response().StatusCode()

		logEntry := log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"http_method": c.Method(),
			"uri":         c.OriginalURL(),
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.IP(),
			"user_agent":  string(c.Request().Header.UserAgent()),
		})

		if err != nil {
			// Fiber's error handler still owns the response.
			logEntry.WithField("error", err.Error()).Error("Request processing failed")
			return err
		}

		switch {
		case statusCode >= 500:
			logEntry.Error("Request completed with server error")
		case statusCode >= 400:
			logEntry.Warn("Request completed with client error")
		default:
			logEntry.Info("Request completed successfully")
		}
		return nil
	}
}
