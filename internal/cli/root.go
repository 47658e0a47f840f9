package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/ferroclaw/ferroclaw/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"   __                          _\n" +
		"  / _| ___ _ __ _ __ ___   ___| | __ ___      __\n" +
		" | |_ / _ \\ '__| '__/ _ \\ / __| |/ _` \\ \\ /\\ / /\n" +
		" |  _|  __/ |  | | | (_) | (__| | (_| |\\ V  V /\n" +
		" |_|  \\___|_|  |_|  \\___/ \\___|_|\\__,_| \\_/\\_/\n"
)

var rootCmd = &cobra.Command{
	Use:   "ferroclaw",
	Short: "ferroclaw - Personal AI Assistant",
	Long:  color.CyanString(logo) + "\nA lightweight AI agent runtime written in Go.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(gatewayCmd)
}
