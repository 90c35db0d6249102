package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"yoma-api/middleware"
	"yoma-api/services"
)

// Services are the dependencies of the REST routes.
type Services struct {
	Lookups         *services.LookupService
	Users           *services.UserService
	Organizations   *services.OrganizationService
	Opportunities   *services.OpportunityService
	MyOpportunities *services.MyOpportunityService
	Rewards         *services.RewardService
	Wallets         *services.WalletService
	Credentials     *services.SSIService
	Marketplace     *services.MarketplaceService
	Analytics       *services.AnalyticsService

	// RewardStreamInterval is how often the reward stream polls the ledger.
	RewardStreamInterval time.Duration
}

// SetupRoutes mounts every route under /api/v3. The gateway forwards the
// caller identity, which UserContextMiddleware reads for all of them.
func SetupRoutes(app *fiber.App, svc Services) {
	api := app.Group("/api/v3", middleware.UserContextMiddleware())

	interval := svc.RewardStreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	SetupLookupRoutes(api, svc.Lookups)
	SetupUserRoutes(api, svc.Users)
	SetupOrganizationRoutes(api, svc.Organizations)
	SetupOpportunityRoutes(api, svc.Opportunities, svc.Organizations)
	SetupMyOpportunityRoutes(api, svc.MyOpportunities, svc.Organizations)
	SetupRewardRoutes(api, svc.Rewards, svc.Wallets, interval)
	SetupSSIRoutes(api, svc.Credentials)
	SetupMarketplaceRoutes(api, svc.Marketplace)
	SetupAnalyticsRoutes(api, svc.Analytics)
}
