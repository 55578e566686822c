package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/reactor/internal/cli"
	"github.com/aretw0/reactor/internal/dto"
)

var opts cli.Options

var rootCmd = &cobra.Command{
	Use:   "reactor",
	Short: "Reactor builds and meshes cylindrical reactor geometries",
	Long: `Reactor builds a cylinder with a central square chimney, groups its faces
into inlet, outlet and wall, and computes a structured mesh. The square and
curvature fractions can be searched by an optimizer that minimises the worst
element aspect ratio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cli.AddPersistentFlags(rootCmd.PersistentFlags(), &opts)
}

// setup resolves the logger and the parameters of cmd.
func setup(cmd *cobra.Command) (*slog.Logger, dto.ParamsFile, error) {
	logger, err := opts.Logger()
	if err != nil {
		return nil, dto.ParamsFile{}, err
	}
	f, err := cli.ResolveParams(cmd.Flags(), opts, logger)
	if err != nil {
		return nil, dto.ParamsFile{}, err
	}
	return logger, f, nil
}
