// Package cmd holds the yoma command line: the API server, schema
// migrations and one-off background job runs.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"yoma-api/config"
	"yoma-api/logger"
)

type configKey struct{}

var rootCmd = &cobra.Command{
	Use:               "yoma",
	Short:             "Yoma opportunity marketplace API",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, jobsCmd)
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// initConfig loads the configuration and logger into the command context.
func initConfig(c *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	l := logger.Setup(cfg.Log.Dev)

	ctx := context.WithValue(l.WithContext(c.Context()), configKey{}, cfg)
	c.SetContext(ctx)
	return nil
}

func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func loggerFromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}
