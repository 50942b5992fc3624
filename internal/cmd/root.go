package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// ApplicationName is the binary and service name
const ApplicationName = "agileassist"

var rootCmd = &cobra.Command{
	Use:   ApplicationName,
	Short: "Multilingual voice assistant for agile teams",
	Long: `agileassist answers spoken or typed questions about agile practice in the
language they were asked in, and reads the answers aloud. "serve" runs the
backend and its browser voice sessions; "chat" talks to a running backend
from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
