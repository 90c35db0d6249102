package handlers

import (
	"github.com/gofiber/fiber/v2"

	"yoma-api/services"
)

func SetupLookupRoutes(router fiber.Router, lookups *services.LookupService) {
	group := router.Group("/lookup")

	group.Get("/categories", func(c *fiber.Ctx) error {
		items, err := lookups.ListCategories(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Get("/opportunity-types", func(c *fiber.Ctx) error {
		items, err := lookups.ListOpportunityTypes(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Get("/verification-types", func(c *fiber.Ctx) error {
		items, err := lookups.ListVerificationTypes(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Get("/organization-statuses", func(c *fiber.Ctx) error {
		return c.JSON(lookups.OrganizationStatuses())
	})
	group.Get("/opportunity-statuses", func(c *fiber.Ctx) error {
		return c.JSON(lookups.OpportunityStatuses())
	})
	group.Get("/verification-statuses", func(c *fiber.Ctx) error {
		return c.JSON(lookups.VerificationStatuses())
	})
}
