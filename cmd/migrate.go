package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"yoma-api/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the database schema and seed the lookup tables",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx := c.Context()
		cfg := configFromContext(ctx)
		if cfg.Store != config.StorePostgres {
			return fmt.Errorf("migrate needs STORE=%s, got %q", config.StorePostgres, cfg.Store)
		}
		return migrate(ctx, cfg, loggerFromContext(ctx))
	},
}
