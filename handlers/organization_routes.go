package handlers

import (
	"github.com/gofiber/fiber/v2"

	"yoma-api/auth"
	"yoma-api/middleware"
	"yoma-api/models"
	"yoma-api/services"
	"yoma-api/utils"
)

type adminsRequest struct {
	Emails []string `json:"emails"`
}

// organizationRequest reads a JSON body or a multipart form with the JSON
// under "request" and an optional "logo" file.
func organizationRequest(c *fiber.Ctx) (services.OrganizationRequest, *utils.File, error) {
	var req services.OrganizationRequest
	if !isMultipart(c) {
		return req, nil, parseBody(c, &req)
	}
	form, err := parseMultipart(c, &req)
	if err != nil {
		return req, nil, err
	}
	logo, err := formFile(form, "logo")
	return req, logo, err
}

func SetupOrganizationRoutes(router fiber.Router, orgs *services.OrganizationService) {
	group := router.Group("/organization")
	user := middleware.RequireUser()
	orgAdmin := middleware.RequireRoles(auth.RoleAdmin, auth.RoleOrganisationAdmin)

	// Search lists active organisations; admins may filter on any status.
	group.Get("/search", func(c *fiber.Ctx) error {
		filter := services.OrganizationSearchFilter{
			ValueContains: c.Query("value_contains"),
			Statuses:      typed[models.OrganizationStatus](queryValues(c, "statuses")),
			Page:          queryPage(c),
		}
		if id, ok := middleware.Identity(c); !ok || !id.IsAdmin() {
			filter.Statuses = []models.OrganizationStatus{models.OrganizationStatusActive}
		}
		res, err := orgs.Search(c.UserContext(), filter)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	group.Get("/administered", user, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		items, err := orgs.ListAdministered(c.UserContext(), id.UserID)
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Get("/slug/:slug", func(c *fiber.Ctx) error {
		org, err := orgs.GetBySlug(c.UserContext(), c.Params("slug"))
		if err != nil {
			return err
		}
		return c.JSON(org)
	})

	group.Post("/", user, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		req, logo, err := organizationRequest(c)
		if err != nil {
			return err
		}
		org, err := orgs.Create(c.UserContext(), id, req, logo)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(org)
	})

	group.Get("/:id", func(c *fiber.Ctx) error {
		orgID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		org, err := orgs.Get(c.UserContext(), orgID)
		if err != nil {
			return err
		}
		return c.JSON(org)
	})

	group.Patch("/:id", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		orgID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		req, logo, err := organizationRequest(c)
		if err != nil {
			return err
		}
		org, err := orgs.Update(c.UserContext(), id, orgID, req, logo)
		if err != nil {
			return err
		}
		return c.JSON(org)
	})

	group.Put("/:id/status", middleware.RequireRoles(auth.RoleAdmin), func(c *fiber.Ctx) error {
		orgID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req services.OrganizationStatusRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		org, err := orgs.UpdateStatus(c.UserContext(), orgID, req)
		if err != nil {
			return err
		}
		return c.JSON(org)
	})

	group.Get("/:id/admins", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		orgID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		admins, err := orgs.ListAdmins(c.UserContext(), id, orgID)
		if err != nil {
			return err
		}
		return c.JSON(admins)
	})

	group.Post("/:id/admins", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		orgID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req adminsRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if err := orgs.AssignAdmins(c.UserContext(), id, orgID, req.Emails); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	group.Delete("/:id/admins", orgAdmin, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		orgID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req adminsRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if err := orgs.RemoveAdmins(c.UserContext(), id, orgID, req.Emails); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
