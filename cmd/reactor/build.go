package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/reactor"
	"github.com/aretw0/reactor/internal/cli"
)

var buildOpts cli.BuildOptions

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the geometry and mesh it",
	Long: `Builds the reactor geometry from the parameter file and flags, meshes it
and prints a report. Exports are written in the format named by their extension.`,
	Example: `  reactor build -c params.yaml --mesh-out mesh.yaml
  reactor build --radius 12 --optimize --save params.toml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		app.Renderer.Banner(reactor.Version)
		if err := app.Build(ctx, buildOpts); err != nil {
			if sig := ctx.Signal(); sig != nil {
				logger.Warn("build interrupted", "signal", sig)
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	cli.AddParamFlags(buildCmd.Flags())
	buildCmd.Flags().StringVar(&buildOpts.GeometryOut, "geometry-out", "", "Export the solid to this file")
	buildCmd.Flags().StringVarP(&buildOpts.MeshOut, "mesh-out", "o", "", "Export the mesh to this file")
	buildCmd.Flags().StringVar(&buildOpts.SavePath, "save", "", "Save the resolved parameters to this file")
	buildCmd.Flags().BoolVar(&buildOpts.SkipMesh, "no-mesh", false, "Stop after the geometry")
}
