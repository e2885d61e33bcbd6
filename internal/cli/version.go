package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the unibox version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("unibox", rootCmd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
