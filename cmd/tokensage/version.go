package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelnar/tokensage/common/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tokensage %s\n", version.Version)
		fmt.Printf("commit: %s\n", version.GitCommit)
		fmt.Printf("built:  %s\n", version.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
