package cmd

import (
	"github.com/spf13/cobra"

	"yoma-api/workers"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and run background jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the background jobs",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		cfg := configFromContext(c.Context())
		jobs := workers.Jobs(cfg.Jobs, workers.Services{})
		for _, j := range jobs {
			c.Printf("%-22s every %s\n", j.Name, j.Interval)
		}
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run one background job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := c.Context()
		cfg := configFromContext(ctx)
		l := loggerFromContext(ctx)

		d, err := buildDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = d.Close() }()

		res, ran, err := d.scheduler(cfg, l).RunOnce(ctx, args[0])
		if err != nil {
			return err
		}
		if !ran {
			c.Printf("%s is running elsewhere, skipped\n", args[0])
			return nil
		}
		c.Printf("%s: processed=%d succeeded=%d failed=%d skipped=%d\n",
			args[0], res.Processed, res.Succeeded, res.Failed, res.Skipped)
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsListCmd, jobsRunCmd)
}
