package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inboxd",
	Short: "Direct-messaging relay and inbox index",
	Long: `inboxd relays direct messages between pairs of users, keeps a mirrored
per-participant copy of every conversation log, and maintains a
recent-conversation index for inbox screens.

Available commands:
  serve      Start the relay service
  version    Print the build version

Use "inboxd [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
