package cmd

import (
	"fmt"
	"os"

	"StuffChat/config"
	"StuffChat/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stuffchat",
	Short: "StuffChat room hub: presence, calls and listen-together playback.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(config.Load())
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
