package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferroclaw/ferroclaw/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("ferroclaw version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("ferroclaw status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			fmt.Printf("Config path: %s\n", configPath)
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ %v\n", err)
			return
		}
		if cfg.Providers.OpenAI.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found")
		}
		fmt.Printf("Model:   %s\n", cfg.Model.Name)
		fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())

		report := func(name string, enabled bool) {
			if enabled {
				fmt.Printf("%s: ✓ Enabled\n", name)
			} else {
				fmt.Printf("%s: ✗ Disabled\n", name)
			}
		}
		report("Telegram", cfg.Channels.Telegram.Enabled)
		report("Slack", cfg.Channels.Slack.Enabled)
		report("Discord", cfg.Channels.Discord.Enabled)
		report("Heartbeat", cfg.Heartbeat.Enabled)
		if len(cfg.Trace.Brokers) > 0 {
			fmt.Printf("Trace:   ✓ %s\n", cfg.Trace.Topic)
		} else {
			fmt.Println("Trace:   ✗ Disabled")
		}
	},
}
