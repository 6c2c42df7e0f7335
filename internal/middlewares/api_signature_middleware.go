package middlewares

import (
	"errors"

	"github.com/flowbaker/vault/internal/auth"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// APISignatureMiddleware rejects requests that do not carry a valid signature
// from the dashboard backend.
func APISignatureMiddleware(verifier *auth.SignatureVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		signatureHeader := c.Get(auth.SignatureHeader)
		timestampHeader := c.Get(auth.TimestampHeader)

		err := verifier.Verify(
			c.Method(),
			c.Path(),
			signatureHeader,
			timestampHeader,
			c.Body(),
		)
		if err != nil {
			log.Warn().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("request_id", RequestID(c)).
				Msg("API signature verification failed")

			message := "Invalid API signature"
			if errors.Is(err, auth.ErrStaleTimestamp) {
				message = "Request timestamp outside allowed window"
			}

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": message,
			})
		}

		return c.Next()
	}
}
