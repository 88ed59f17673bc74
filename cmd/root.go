package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bbq-buddy",
	Short: "BBQ Buddy back office",
	Long:  `BBQ Buddy manages BBQ events, their ordering lifecycle and the product catalog`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
