package middlewares

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDLocal = "request_id"
)

type RequestObserver interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// RequestID returns the id assigned by RequestMiddleware, or "".
func RequestID(c fiber.Ctx) string {
	id, _ := c.Locals(requestIDLocal).(string)
	return id
}

// RequestMiddleware assigns a request id, echoes it in the response and
// records the request with observer. Credential bodies are never logged.
func RequestMiddleware(observer RequestObserver) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = xid.New().String()
		}
		c.Locals(requestIDLocal, requestID)
		c.Set(RequestIDHeader, requestID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
		}

		route := c.Route().Path
		duration := time.Since(start)

		if observer != nil {
			observer.ObserveRequest(c.Method(), route, status, duration)
		}

		log.Debug().
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("route", route).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request served")

		return err
	}
}
