package middlewares

import (
	"strings"

	"github.com/flowbaker/vault/pkg/domain"

	"github.com/gofiber/fiber/v3"
)

// ActorHeader names the dashboard user behind a request. Requests without it
// are recorded as the system actor.
const ActorHeader = "X-Actor-Email"

func ActorMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if actor := strings.TrimSpace(c.Get(ActorHeader)); actor != "" {
			c.SetContext(domain.WithActor(c.Context(), actor))
		}

		return c.Next()
	}
}
