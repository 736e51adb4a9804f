package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vnchat",
	Short: "Terminal client for the visual-novel chat backend",
	Long:  "VNChat keeps a local mirror of a chat session in sync with its backend over polling and push, and renders it as a terminal conversation.",
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
