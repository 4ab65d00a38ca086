package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/spigell/cv-matcher/internal/embedding"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s (%s, local encoder %d dimensions)\n",
			app, version, runtime.Version(), embedding.DefaultDimensions)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
