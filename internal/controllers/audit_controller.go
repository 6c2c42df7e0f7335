package controllers

import (
	"github.com/flowbaker/vault/pkg/audit"
	"github.com/flowbaker/vault/pkg/domain"

	"github.com/gofiber/fiber/v3"
)

type AuditController struct {
	trail *audit.Trail
}

type AuditControllerDependencies struct {
	Trail *audit.Trail
}

func NewAuditController(deps AuditControllerDependencies) *AuditController {
	return &AuditController{
		trail: deps.Trail,
	}
}

// ListEvents returns the tenant's most recent credential changes, newest
// first.
func (ctl *AuditController) ListEvents(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit", domain.MaxAuditListLimit)

	events, err := ctl.trail.List(c.Context(), c.Params("tenantID"), limit)
	if err != nil {
		return toHTTPError(err, "list audit events")
	}

	return c.JSON(fiber.Map{"events": events})
}
