package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/reactor/internal/cli"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search the square and curvature fractions",
	Long: `Runs the fraction search alone and reports the best pair. Unlike build
--optimize, a failed search is an error instead of a fallback.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		purge, _ := cmd.Flags().GetBool("purge-cache")
		logger, f, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := cli.Open(ctx, f, opts, logger, os.Stdout)
		if err != nil {
			return err
		}
		defer app.Close()
		return app.Optimize(ctx, purge)
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
	cli.AddParamFlags(optimizeCmd.Flags())
	optimizeCmd.Flags().Bool("purge-cache", false, "Remove cached trials before searching")
}
