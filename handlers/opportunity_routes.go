package handlers

import (
	"github.com/gofiber/fiber/v2"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/middleware"
	"yoma-api/models"
	"yoma-api/services"
)

func opportunityFilter(c *fiber.Ctx) (services.OpportunitySearchFilter, error) {
	var (
		filter services.OpportunitySearchFilter
		err    error
	)
	if filter.OrganizationIDs, err = queryIDs(c, "organizations"); err != nil {
		return filter, err
	}
	if filter.CategoryIDs, err = queryIDs(c, "categories"); err != nil {
		return filter, err
	}
	if filter.StartDate, err = queryTime(c, "start_date"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = queryTime(c, "end_date"); err != nil {
		return filter, err
	}
	filter.Types = queryValues(c, "types")
	filter.Statuses = typed[models.OpportunityStatus](queryValues(c, "statuses"))
	filter.ValueContains = c.Query("value_contains")
	filter.Page = queryPage(c)
	return filter, nil
}

func SetupOpportunityRoutes(router fiber.Router, opportunities *services.OpportunityService, orgs *services.OrganizationService) {
	group := router.Group("/opportunity")
	orgAdmin := middleware.RequireRoles(auth.RoleAdmin, auth.RoleOrganisationAdmin)

	// Public search only returns published opportunities.
	group.Get("/search", func(c *fiber.Ctx) error {
		filter, err := opportunityFilter(c)
		if err != nil {
			return err
		}
		filter.Statuses = nil
		filter.PublishedOnly = true
		res, err := opportunities.Search(c.UserContext(), filter)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	// Admin search: organisation admins must name the organisations they
	// administer.
	group.Get("/search/admin", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		filter, err := opportunityFilter(c)
		if err != nil {
			return err
		}
		if !id.IsAdmin() {
			if len(filter.OrganizationIDs) == 0 {
				return errs.Validation("'organizations' is required")
			}
			for _, orgID := range filter.OrganizationIDs {
				if err := orgs.Authorize(c.UserContext(), id, orgID); err != nil {
					return err
				}
			}
		}
		res, err := opportunities.Search(c.UserContext(), filter)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	group.Get("/:id/info", func(c *fiber.Ctx) error {
		oppID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		opp, err := opportunities.GetPublished(c.UserContext(), oppID)
		if err != nil {
			return err
		}
		return c.JSON(opp)
	})

	group.Get("/:id", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		oppID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		opp, err := opportunities.Get(c.UserContext(), oppID)
		if err != nil {
			return err
		}
		if err := orgs.Authorize(c.UserContext(), id, opp.OrganizationID); err != nil {
			return err
		}
		return c.JSON(opp)
	})

	group.Post("/", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		var req services.OpportunityRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		opp, err := opportunities.Create(c.UserContext(), id, req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(opp)
	})

	group.Patch("/:id", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		oppID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req services.OpportunityRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		opp, err := opportunities.Update(c.UserContext(), id, oppID, req)
		if err != nil {
			return err
		}
		return c.JSON(opp)
	})

	group.Put("/:id/status", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		oppID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req services.OpportunityStatusRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		opp, err := opportunities.UpdateStatus(c.UserContext(), id, oppID, req)
		if err != nil {
			return err
		}
		return c.JSON(opp)
	})
}
