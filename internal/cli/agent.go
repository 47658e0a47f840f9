package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferroclaw/ferroclaw/internal/agent"
	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/config"
	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/session"
)

var agentMessage string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the agent directly in CLI",
	Run:   runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Message to send to the agent")
}

func runAgent(cmd *cobra.Command, args []string) {
	if agentMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("ferroclaw agent")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		fmt.Println("Error: no API key configured (set FERROCLAW_OPENAI_API_KEY)")
		os.Exit(1)
	}

	msgBus := bus.NewMessageBus()
	prov := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Name)
	sessions := session.NewManager(config.SessionsDir())

	loop := agent.NewLoop(agent.Options{
		Bus:           msgBus,
		Provider:      prov,
		Sessions:      sessions,
		Model:         cfg.Model.Name,
		Workspace:     cfg.WorkspacePath(),
		MaxIterations: cfg.Model.MaxToolIterations,
		MaxTokens:     cfg.Model.MaxTokens,
		Temperature:   cfg.Model.Temperature,
	})

	fmt.Printf("ferroclaw (%s)\n", cfg.Model.Name)
	fmt.Println("Thinking...")

	response, err := loop.ProcessDirect(context.Background(), agentMessage)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + response)
}
