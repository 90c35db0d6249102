package handlers

import (
	"github.com/gofiber/fiber/v2"

	"yoma-api/middleware"
	"yoma-api/services"
)

func SetupSSIRoutes(router fiber.Router, credentials *services.SSIService) {
	group := router.Group("/ssi")

	group.Get("/schema/entities", func(c *fiber.Ctx) error {
		items, err := credentials.ListSchemaEntities(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Get("/schema/entities/:name", func(c *fiber.Ctx) error {
		entity, err := credentials.GetSchemaEntity(c.UserContext(), c.Params("name"))
		if err != nil {
			return err
		}
		return c.JSON(entity)
	})

	group.Get("/credentials", middleware.RequireUser(), func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		items, err := credentials.ListCredentials(c.UserContext(), id.UserID)
		if err != nil {
			return err
		}
		return c.JSON(items)
	})
}
