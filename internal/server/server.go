package server

import (
	"errors"
	"time"

	"github.com/flowbaker/vault/internal/auth"
	"github.com/flowbaker/vault/internal/controllers"
	"github.com/flowbaker/vault/internal/metrics"
	"github.com/flowbaker/vault/internal/middlewares"
	"github.com/flowbaker/vault/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog/log"
)

const serviceName = "flowbaker-vault"

type HTTPServerDependencies struct {
	ConnectorController *controllers.ConnectorController
	WarehouseController *controllers.WarehouseController
	AuditController     *controllers.AuditController
	SignatureVerifier   *auth.SignatureVerifier
	Metrics             *metrics.Metrics
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: errorHandler,
	})

	router.Use(recoverer.New())
	router.Use(cors.New())
	router.Use(middlewares.RequestMiddleware(deps.Metrics))

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   serviceName,
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))

	if deps.SignatureVerifier == nil {
		log.Fatal().Msg("Signature verifier is nil, set API_SIGNING_PUBLIC_KEY")
	}

	tenant := router.Group("/tenants/:tenantID",
		middlewares.APISignatureMiddleware(deps.SignatureVerifier),
		middlewares.ActorMiddleware(),
	)

	tenant.Get("/audit", deps.AuditController.ListEvents)

	connectors := tenant.Group("/connectors")
	connectors.Get("/status", deps.ConnectorController.GetStatuses)
	connectors.Get("/:integrationID/status", deps.ConnectorController.GetStatus)
	connectors.Put("/:integrationID", deps.ConnectorController.SaveCredentials)
	connectors.Delete("/:integrationID", deps.ConnectorController.DeleteCredentials)
	connectors.Post("/:integrationID/test", deps.ConnectorController.TestConnection)
	connectors.Post("/:integrationID/sync", deps.ConnectorController.TriggerSync)

	tenant.Put("/warehouse", deps.WarehouseController.Save)
	tenant.Delete("/warehouse", deps.WarehouseController.Delete)

	warehouse := tenant.Group("/warehouse")
	warehouse.Get("/status", deps.WarehouseController.GetStatus)
	warehouse.Post("/test", deps.WarehouseController.Test)
	warehouse.Put("/oauth-app", deps.WarehouseController.SaveOAuthApp)
	warehouse.Get("/oauth/authorize", deps.WarehouseController.Authorize)
	warehouse.Post("/oauth/callback", deps.WarehouseController.Callback)

	return router
}
