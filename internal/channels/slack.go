package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/config"
)

// SlackChannel connects over Socket Mode so no public webhook endpoint is
// needed.
type SlackChannel struct {
	BaseChannel
	config    config.SlackConfig
	client    *slack.Client
	socket    *socketmode.Client
	botUserID string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		client:      client,
		socket:      socketmode.New(client),
		logger:      slog.Default().With("component", "slack"),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	authResp, err := c.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.botUserID = authResp.UserID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.handleEvents(runCtx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			c.logger.Error("socket mode terminated", "error", err)
		}
	}()
	return nil
}

func (c *SlackChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	_, _, err := c.client.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(msg.Content, false))
	if err != nil {
		return fmt.Errorf("posting slack message: %w", err)
	}
	return nil
}

func (c *SlackChannel) handleEvents(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.socket.Events:
			if !ok {
				return
			}
			switch event.Type {
			case socketmode.EventTypeConnected:
				c.logger.Info("connected to socket mode")
			case socketmode.EventTypeConnectionError:
				c.logger.Warn("socket mode connection error", "data", event.Data)
			case socketmode.EventTypeEventsAPI:
				c.handleEventsAPI(event)
			case socketmode.EventTypeSlashCommand, socketmode.EventTypeInteractive:
				if event.Request != nil {
					c.socket.Ack(*event.Request)
				}
			}
		}
	}
}

func (c *SlackChannel) handleEventsAPI(event socketmode.Event) {
	apiEvent, ok := event.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if event.Request != nil {
		c.socket.Ack(*event.Request)
	}
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		c.publishInbound(ev.User, ev.Channel, ev.Text)
	case *slackevents.MessageEvent:
		// Skip bot echoes and edits; only direct messages reach the agent
		// without a mention.
		if ev.BotID != "" || ev.SubType != "" {
			return
		}
		isDM := strings.HasPrefix(ev.Channel, "D")
		isMention := strings.Contains(ev.Text, "<@"+c.botUserID+">")
		if !isDM && !isMention {
			return
		}
		c.publishInbound(ev.User, ev.Channel, ev.Text)
	}
}

func (c *SlackChannel) publishInbound(senderID, channelID, text string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "<@"+c.botUserID+">", ""))
	if text == "" {
		return
	}
	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:   c.Name(),
		SenderID:  senderID,
		ChatID:    channelID,
		Content:   text,
		Timestamp: time.Now(),
	})
}
