package handlers

import (
	"github.com/gofiber/fiber/v2"

	"yoma-api/auth"
	"yoma-api/middleware"
	"yoma-api/services"
)

func SetupUserRoutes(router fiber.Router, users *services.UserService) {
	group := router.Group("/user", middleware.RequireUser())

	group.Get("/", func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		user, err := users.Get(c.UserContext(), id.UserID)
		if err != nil {
			return err
		}
		return c.JSON(user)
	})

	group.Patch("/", func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		var req services.UserProfileRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		user, err := users.UpdateProfile(c.UserContext(), id.UserID, req)
		if err != nil {
			return err
		}
		return c.JSON(user)
	})

	adminOnly := middleware.RequireRoles(auth.RoleAdmin)

	// Upsert is called by the identity provider sync.
	group.Post("/", adminOnly, func(c *fiber.Ctx) error {
		var req services.UserRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		user, created, err := users.Upsert(c.UserContext(), req)
		if err != nil {
			return err
		}
		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(user)
	})

	group.Get("/search", adminOnly, func(c *fiber.Ctx) error {
		res, err := users.Search(c.UserContext(), services.UserSearchFilter{
			ValueContains: c.Query("value_contains"),
			Page:          queryPage(c),
		})
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	group.Get("/:id", adminOnly, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		user, err := users.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(user)
	})
}
