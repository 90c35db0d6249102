package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"yoma-api/config"
	"yoma-api/handlers"
	"yoma-api/logger"
	"yoma-api/metrics"
	"yoma-api/middleware"
	"yoma-api/store/postgres"
)

const shutdownTimeout = 10 * time.Second

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and background jobs",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx := c.Context()
		cfg := configFromContext(ctx)
		l := loggerFromContext(ctx)

		if autoMigrate && cfg.Store == config.StorePostgres {
			if err := migrate(ctx, cfg, l); err != nil {
				return err
			}
		}

		d, err := buildDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := d.Close(); err != nil {
				l.Error().Err(err).Msg("failed to close resources")
			}
		}()

		if cfg.Jobs.Enabled {
			sched := d.scheduler(cfg, l)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := sched.Shutdown(); err != nil {
					l.Error().Err(err).Msg("failed to stop scheduler")
				}
			}()
			l.Info().Strs("jobs", sched.Names()).Msg("background jobs running")
		}

		app := newApp(cfg, l, d.services)

		lch := make(chan error, 1)
		go func() {
			l.Info().Str("addr", cfg.HTTP.ListenAddr).Strs("origins", cfg.HTTP.AllowedOrigins).Msg("server running")
			lch <- app.Listen(cfg.HTTP.ListenAddr)
		}()

		select {
		case err := <-lch:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		l.Info().Msg("shutting down server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "migrate the database schema before starting")
}

// newApp builds the fiber app. Health and metrics are served outside the
// gateway check; every API route requires the gateway token.
func newApp(cfg *config.Config, l zerolog.Logger, svc handlers.Services) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(metrics.Middleware())
	app.Use(logger.RequestLogger(l))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.HTTP.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Email, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	app.Use(middleware.GatewayAuthMiddleware(cfg.HTTP.GatewayToken))
	handlers.SetupRoutes(app, svc)
	return app
}

func migrate(ctx context.Context, cfg *config.Config, l zerolog.Logger) error {
	db, err := openDatabase(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = closeDatabase(db)() }()

	if err := postgres.Migrate(db); err != nil {
		return err
	}
	if err := postgres.SeedLookups(ctx, db); err != nil {
		return fmt.Errorf("failed to seed lookups: %w", err)
	}
	l.Info().Msg("database migrated")
	return nil
}
