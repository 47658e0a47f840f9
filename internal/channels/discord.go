package channels

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/config"
)

const discordSendTimeout = 10 * time.Second

// DiscordChannel bridges Discord guild and DM messages onto the bus.
type DiscordChannel struct {
	BaseChannel
	config  config.DiscordConfig
	session *discordgo.Session
	logger  *slog.Logger
}

func NewDiscordChannel(cfg config.DiscordConfig, messageBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	c := &DiscordChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		session:     session,
		logger:      slog.Default().With("component", "discord"),
	}
	session.AddHandler(c.handleMessage)
	return c, nil
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) Start(ctx context.Context) error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Stop() error {
	return c.session.Close()
}

func (c *DiscordChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if msg.ChatID == "" {
		return fmt.Errorf("discord channel id is empty")
	}
	// discordgo has no context-aware send, bound it ourselves.
	sendCtx, cancel := context.WithTimeout(ctx, discordSendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(msg.ChatID, msg.Content)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("sending discord message: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.Author.Bot {
		return
	}
	if !allowed(c.config.AllowFrom, m.Author.ID) {
		c.logger.Debug("sender not in allowlist", "sender_id", m.Author.ID)
		return
	}
	if m.Content == "" {
		return
	}
	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:   c.Name(),
		SenderID:  m.Author.ID,
		ChatID:    m.ChannelID,
		Content:   m.Content,
		Timestamp: time.Now(),
	})
}
