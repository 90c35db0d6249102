package handlers

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/middleware"
	"yoma-api/models"
	"yoma-api/services"
)

// verificationFileField is the multipart field carrying the file of a
// verification item, for example "file_Picture".
func verificationFileField(t models.VerificationType) string {
	return "file_" + string(t)
}

func verificationRequest(c *fiber.Ctx) (services.VerificationRequest, error) {
	var req services.VerificationRequest
	if !isMultipart(c) {
		return req, parseBody(c, &req)
	}
	form, err := parseMultipart(c, &req)
	if err != nil {
		return req, err
	}
	for i := range req.Items {
		file, err := formFile(form, verificationFileField(req.Items[i].Type))
		if err != nil {
			return req, err
		}
		req.Items[i].File = file
	}
	return req, nil
}

func SetupMyOpportunityRoutes(router fiber.Router, myOpps *services.MyOpportunityService, orgs *services.OrganizationService) {
	group := router.Group("/myopportunity", middleware.RequireUser())
	orgAdmin := middleware.RequireRoles(auth.RoleAdmin, auth.RoleOrganisationAdmin)

	action := func(perform func(c *fiber.Ctx, id auth.Identity) error) fiber.Handler {
		return func(c *fiber.Ctx) error {
			id, err := caller(c)
			if err != nil {
				return err
			}
			if err := perform(c, id); err != nil {
				return err
			}
			return c.SendStatus(fiber.StatusNoContent)
		}
	}

	group.Put("/action/:opportunityId/view", action(func(c *fiber.Ctx, id auth.Identity) error {
		oppID, err := paramID(c, "opportunityId")
		if err != nil {
			return err
		}
		return myOpps.PerformActionViewed(c.UserContext(), id.UserID, oppID)
	}))

	group.Put("/action/:opportunityId/save", action(func(c *fiber.Ctx, id auth.Identity) error {
		oppID, err := paramID(c, "opportunityId")
		if err != nil {
			return err
		}
		return myOpps.PerformActionSaved(c.UserContext(), id.UserID, oppID)
	}))

	group.Delete("/action/:opportunityId/save", action(func(c *fiber.Ctx, id auth.Identity) error {
		oppID, err := paramID(c, "opportunityId")
		if err != nil {
			return err
		}
		return myOpps.PerformActionSavedRemove(c.UserContext(), id.UserID, oppID)
	}))

	group.Put("/action/:opportunityId/verify", func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		oppID, err := paramID(c, "opportunityId")
		if err != nil {
			return err
		}
		req, err := verificationRequest(c)
		if err != nil {
			return err
		}
		item, err := myOpps.PerformActionSendForVerification(c.UserContext(), id.UserID, oppID, req)
		if err != nil {
			return err
		}
		return c.JSON(item)
	})

	group.Get("/action/:opportunityId/verify/status", func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		oppID, err := paramID(c, "opportunityId")
		if err != nil {
			return err
		}
		state, err := myOpps.GetVerificationStatus(c.UserContext(), id.UserID, oppID)
		if err != nil {
			return err
		}
		return c.JSON(state)
	})

	// Search lists the caller's own records.
	group.Get("/search", func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		filter, err := myOpportunityFilter(c)
		if err != nil {
			return err
		}
		filter.UserID = &id.UserID
		filter.OrganizationID = nil
		res, err := myOpps.Search(c.UserContext(), filter)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	// Verification review for organisation admins.
	group.Get("/verification/search", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		filter, err := myOpportunityFilter(c)
		if err != nil {
			return err
		}
		filter.Action = ptr(models.ActionVerification)
		if !id.IsAdmin() {
			if filter.OrganizationID == nil {
				return errs.Validation("'organization_id' is required")
			}
			if err := orgs.Authorize(c.UserContext(), id, *filter.OrganizationID); err != nil {
				return err
			}
		}
		res, err := myOpps.Search(c.UserContext(), filter)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	group.Put("/verification/status", orgAdmin, action(func(c *fiber.Ctx, id auth.Identity) error {
		var req services.VerificationStatusRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		return myOpps.UpdateVerificationStatus(c.UserContext(), id, req)
	}))

	group.Patch("/verification/status/bulk", orgAdmin, action(func(c *fiber.Ctx, id auth.Identity) error {
		var req services.VerificationStatusBulkRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		return myOpps.UpdateVerificationStatusBulk(c.UserContext(), id, req)
	}))
}

func myOpportunityFilter(c *fiber.Ctx) (services.MyOpportunitySearchFilter, error) {
	var (
		filter services.MyOpportunitySearchFilter
		err    error
	)
	if filter.UserID, err = queryID(c, "user_id"); err != nil {
		return filter, err
	}
	if filter.OpportunityID, err = queryID(c, "opportunity_id"); err != nil {
		return filter, err
	}
	if filter.OrganizationID, err = queryID(c, "organization_id"); err != nil {
		return filter, err
	}
	if a := c.Query("action"); a != "" {
		if !slices.Contains(models.Actions, models.Action(a)) {
			return filter, errs.Validation("'action' must be one of %v", models.Actions)
		}
		filter.Action = ptr(models.Action(a))
	}
	filter.VerificationStatuses = typed[models.VerificationStatus](queryValues(c, "verification_statuses"))
	filter.Page = queryPage(c)
	return filter, nil
}

func ptr[T any](v T) *T { return &v }
