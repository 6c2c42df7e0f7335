package controllers

import (
	"github.com/flowbaker/vault/internal/managers"

	"github.com/gofiber/fiber/v3"
)

type WarehouseController struct {
	manager *managers.WarehouseManager
}

type WarehouseControllerDependencies struct {
	WarehouseManager *managers.WarehouseManager
}

func NewWarehouseController(deps WarehouseControllerDependencies) *WarehouseController {
	return &WarehouseController{
		manager: deps.WarehouseManager,
	}
}

type oauthCallbackRequest struct {
	Code string `json:"code" validate:"required"`
}

func (ctl *WarehouseController) GetStatus(c fiber.Ctx) error {
	status, err := ctl.manager.Status(c.Context(), c.Params("tenantID"))
	if err != nil {
		return toHTTPError(err, "check warehouse status")
	}

	return c.JSON(status)
}

func (ctl *WarehouseController) Save(c fiber.Ctx) error {
	var req managers.WarehouseConfig
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := ctl.manager.Save(c.Context(), c.Params("tenantID"), req); err != nil {
		return toHTTPError(err, "save warehouse config")
	}

	return c.JSON(fiber.Map{"success": true})
}

func (ctl *WarehouseController) Delete(c fiber.Ctx) error {
	if err := ctl.manager.Delete(c.Context(), c.Params("tenantID")); err != nil {
		return toHTTPError(err, "delete warehouse config")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (ctl *WarehouseController) Test(c fiber.Ctx) error {
	var req managers.WarehouseConfig
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	return c.JSON(ctl.manager.Test(c.Context(), req))
}

func (ctl *WarehouseController) SaveOAuthApp(c fiber.Ctx) error {
	var req managers.OAuthAppConfig
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := ctl.manager.SaveOAuthApp(c.Context(), c.Params("tenantID"), req); err != nil {
		return toHTTPError(err, "save oauth application")
	}

	return c.JSON(fiber.Map{"success": true})
}

func (ctl *WarehouseController) Authorize(c fiber.Ctx) error {
	url, err := ctl.manager.AuthorizeURL(c.Context(), c.Params("tenantID"))
	if err != nil {
		return toHTTPError(err, "build authorization url")
	}

	return c.JSON(fiber.Map{"url": url})
}

func (ctl *WarehouseController) Callback(c fiber.Ctx) error {
	var req oauthCallbackRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := ctl.manager.Callback(c.Context(), c.Params("tenantID"), req.Code); err != nil {
		return toHTTPError(err, "complete oauth connection")
	}

	return c.JSON(fiber.Map{"success": true, "message": "OAuth connection successful"})
}
