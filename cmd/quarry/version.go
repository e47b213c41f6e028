package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/quarry"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Quarry",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quarry version %s\n", strings.TrimSpace(quarry.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
