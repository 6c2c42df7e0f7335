package controllers

import (
	"github.com/flowbaker/vault/internal/managers"
	"github.com/flowbaker/vault/pkg/connectors"
	"github.com/flowbaker/vault/pkg/domain"

	"github.com/gofiber/fiber/v3"
)

type ConnectorController struct {
	aggregator  *connectors.Aggregator
	syncManager *managers.SyncManager
}

type ConnectorControllerDependencies struct {
	Aggregator  *connectors.Aggregator
	SyncManager *managers.SyncManager
}

func NewConnectorController(deps ConnectorControllerDependencies) *ConnectorController {
	return &ConnectorController{
		aggregator:  deps.Aggregator,
		syncManager: deps.SyncManager,
	}
}

func integrationID(c fiber.Ctx) domain.IntegrationType {
	return domain.IntegrationType(c.Params("integrationID"))
}

func (ctl *ConnectorController) GetStatuses(c fiber.Ctx) error {
	statuses := ctl.aggregator.StatusesForTenant(c.Context(), c.Params("tenantID"))

	return c.JSON(fiber.Map{"statuses": statuses})
}

func (ctl *ConnectorController) GetStatus(c fiber.Ctx) error {
	id := integrationID(c)
	status := ctl.aggregator.StatusForIntegration(c.Context(), c.Params("tenantID"), id)

	if status == domain.ConnectorStatusUnknownConnector {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"integrationId": id, "status": status})
	}

	return c.JSON(fiber.Map{"integrationId": id, "status": status})
}

func (ctl *ConnectorController) SaveCredentials(c fiber.Ctx) error {
	var fields map[string]string
	if err := c.Bind().Body(&fields); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := ctl.aggregator.SaveCredentials(c.Context(), c.Params("tenantID"), integrationID(c), fields); err != nil {
		return toHTTPError(err, "save credentials")
	}

	return c.JSON(fiber.Map{"success": true})
}

func (ctl *ConnectorController) DeleteCredentials(c fiber.Ctx) error {
	if err := ctl.aggregator.DeleteCredentials(c.Context(), c.Params("tenantID"), integrationID(c)); err != nil {
		return toHTTPError(err, "delete credentials")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (ctl *ConnectorController) TestConnection(c fiber.Ctx) error {
	var fields map[string]string
	if err := c.Bind().Body(&fields); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	return c.JSON(ctl.aggregator.TestConnection(c.Context(), integrationID(c), fields))
}

func (ctl *ConnectorController) TriggerSync(c fiber.Ctx) error {
	var req managers.SyncRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := ctl.syncManager.Trigger(c.Context(), c.Params("tenantID"), integrationID(c), req)
	if err != nil {
		return toHTTPError(err, "run sync")
	}

	return c.JSON(result)
}
