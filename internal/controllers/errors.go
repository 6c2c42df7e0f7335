package controllers

import (
	"errors"

	"github.com/flowbaker/vault/pkg/clients/etl"
	"github.com/flowbaker/vault/pkg/domain"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// bindAndValidate reads the JSON body into req and checks its validate tags.
func bindAndValidate(c fiber.Ctx, req any) error {
	if err := c.Bind().Body(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid field: "+validationErrors[0].Field())
		}
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	return nil
}

// toHTTPError maps domain failures onto coarse HTTP errors. Provider detail
// stays in the logs.
func toHTTPError(err error, action string) error {
	var incomplete *domain.IncompleteCredentialsError

	switch {
	case errors.As(err, &incomplete):
		return fiber.NewError(fiber.StatusBadRequest, incomplete.Error())
	case errors.Is(err, domain.ErrIntegrationNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Unknown connector")
	case errors.Is(err, domain.ErrUnsupportedAuthMethod):
		return fiber.NewError(fiber.StatusBadRequest, "Unsupported auth method")
	case errors.Is(err, domain.ErrOAuthAppNotConfigured):
		return fiber.NewError(fiber.StatusNotFound, "OAuth application not configured")
	case errors.Is(err, domain.ErrRefreshFailed):
		log.Warn().Err(err).Msg(action + " failed at the token endpoint")
		return fiber.NewError(fiber.StatusBadGateway, "OAuth token exchange failed")
	case errors.Is(err, etl.ErrRunFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	if _, ok := etl.AsError(err); ok {
		log.Error().Err(err).Msg(action + " failed at the ETL service")
		return fiber.NewError(fiber.StatusBadGateway, "ETL service unavailable")
	}

	log.Error().Err(err).Msg(action + " failed")

	return fiber.NewError(fiber.StatusInternalServerError, "Failed to "+action)
}
