package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/mascoordinator"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mas-coordinator %s\n", mascoordinator.Version)
	},
}
