package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/reactor"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of reactor",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reactor version %s\n", strings.TrimSpace(reactor.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
