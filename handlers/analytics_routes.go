package handlers

import (
	"github.com/gofiber/fiber/v2"

	"yoma-api/auth"
	"yoma-api/middleware"
	"yoma-api/services"
)

func SetupAnalyticsRoutes(router fiber.Router, analytics *services.AnalyticsService) {
	group := router.Group("/analytics", middleware.RequireUser())

	group.Get("/organization/:id", middleware.RequireRoles(auth.RoleAdmin, auth.RoleOrganisationAdmin), func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		filter := services.OrganizationAnalyticsFilter{}
		if filter.OrganizationID, err = paramID(c, "id"); err != nil {
			return err
		}
		if filter.OpportunityIDs, err = queryIDs(c, "opportunities"); err != nil {
			return err
		}
		if filter.CategoryIDs, err = queryIDs(c, "categories"); err != nil {
			return err
		}
		if filter.StartDate, err = queryTime(c, "start_date"); err != nil {
			return err
		}
		if filter.EndDate, err = queryTime(c, "end_date"); err != nil {
			return err
		}
		summary, err := analytics.OrganizationSummary(c.UserContext(), id, filter)
		if err != nil {
			return err
		}
		return c.JSON(summary)
	})

	group.Get("/youth", func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		summary, err := analytics.YouthSummary(c.UserContext(), id.UserID)
		if err != nil {
			return err
		}
		return c.JSON(summary)
	})
}
