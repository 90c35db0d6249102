package handlers

import (
	"github.com/gofiber/fiber/v2"

	"yoma-api/middleware"
	"yoma-api/services"
)

func SetupMarketplaceRoutes(router fiber.Router, marketplace *services.MarketplaceService) {
	group := router.Group("/marketplace")
	user := middleware.RequireUser()

	group.Get("/store/categories", func(c *fiber.Ctx) error {
		items, err := marketplace.ListCategories(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Get("/store/items", func(c *fiber.Ctx) error {
		items, err := marketplace.ListStoreItems(c.UserContext(), c.Query("category_id"))
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Get("/vouchers", user, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		items, err := marketplace.ListVouchers(c.UserContext(), id.UserID)
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	group.Post("/buy", user, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		var req services.BuyItemRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		voucher, err := marketplace.BuyItem(c.UserContext(), id.UserID, req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(voucher)
	})
}
