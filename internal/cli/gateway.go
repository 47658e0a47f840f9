package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferroclaw/ferroclaw/internal/agent"
	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/channels"
	"github.com/ferroclaw/ferroclaw/internal/config"
	"github.com/ferroclaw/ferroclaw/internal/cron"
	"github.com/ferroclaw/ferroclaw/internal/heartbeat"
	"github.com/ferroclaw/ferroclaw/internal/provider"
	"github.com/ferroclaw/ferroclaw/internal/session"
	"github.com/ferroclaw/ferroclaw/internal/tasklog"
	"github.com/ferroclaw/ferroclaw/internal/trace"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the agent gateway (Telegram, Slack, Discord)",
	Run:   runGateway,
}

func runGateway(cmd *cobra.Command, args []string) {
	printHeader("ferroclaw gateway")
	fmt.Println("Starting ferroclaw gateway...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		fmt.Println("Error: no API key configured (set FERROCLAW_OPENAI_API_KEY)")
		os.Exit(1)
	}
	workspace := cfg.WorkspacePath()

	msgBus := bus.NewMessageBus()
	prov := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Name)
	sessions := session.NewManager(config.SessionsDir())

	taskLog, err := tasklog.Open(config.TaskLogPath())
	if err != nil {
		fmt.Printf("Task log error: %v\n", err)
		os.Exit(1)
	}
	defer taskLog.Close()

	tracer := trace.NewPublisher(cfg.Trace.Brokers, cfg.Trace.Topic)
	defer tracer.Close()
	if tracer.Enabled() {
		fmt.Printf("Trace publisher: %s\n", cfg.Trace.Topic)
	}

	loop := agent.NewLoop(agent.Options{
		Bus:           msgBus,
		Provider:      prov,
		Sessions:      sessions,
		Model:         cfg.Model.Name,
		Workspace:     workspace,
		MaxIterations: cfg.Model.MaxToolIterations,
		MaxTokens:     cfg.Model.MaxTokens,
		Temperature:   cfg.Model.Temperature,
		TaskLog:       taskLog,
		Trace:         tracer,
	})

	cronSvc := cron.NewService(msgBus, config.CronStorePath())
	loop.Registry().Register(cron.NewReminderTool(cronSvc))
	cronSvc.Start()
	defer cronSvc.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := channels.NewManager()
	if cfg.Channels.Telegram.Enabled {
		tg, err := channels.NewTelegramChannel(cfg.Channels.Telegram, msgBus)
		if err != nil {
			fmt.Printf("Telegram error: %v\n", err)
			os.Exit(1)
		}
		manager.Register(tg)
	}
	if cfg.Channels.Slack.Enabled {
		manager.Register(channels.NewSlackChannel(cfg.Channels.Slack, msgBus))
	}
	if cfg.Channels.Discord.Enabled {
		dc, err := channels.NewDiscordChannel(cfg.Channels.Discord, msgBus)
		if err != nil {
			fmt.Printf("Discord error: %v\n", err)
			os.Exit(1)
		}
		manager.Register(dc)
	}
	if err := manager.StartAll(ctx, msgBus); err != nil {
		fmt.Printf("Channel error: %v\n", err)
		os.Exit(1)
	}
	defer manager.StopAll()
	fmt.Printf("Channels: %v\n", manager.Names())

	if cfg.Heartbeat.Enabled {
		hb := heartbeat.NewService(msgBus, workspace,
			time.Duration(cfg.Heartbeat.IntervalMinutes)*time.Minute)
		go hb.Run(ctx)
	}

	go func() {
		if err := msgBus.DispatchOutbound(ctx); err != nil && ctx.Err() == nil {
			fmt.Printf("Dispatcher error: %v\n", err)
		}
	}()
	go func() {
		if err := loop.Run(ctx); err != nil {
			fmt.Printf("Agent loop error: %v\n", err)
		}
	}()

	fmt.Printf("ferroclaw gateway running (%s)\n", cfg.Model.Name)
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	cancel()
	loop.Stop()
	loop.Subagents().StopAll()
	msgBus.Stop()
}
