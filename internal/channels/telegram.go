package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ferroclaw/ferroclaw/internal/bus"
	"github.com/ferroclaw/ferroclaw/internal/config"
)

// TelegramChannel receives messages via long polling and delivers agent
// replies with the Bot API.
type TelegramChannel struct {
	BaseChannel
	config config.TelegramConfig
	bot    *bot.Bot
	cancel context.CancelFunc
	logger *slog.Logger
}

func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus) (*TelegramChannel, error) {
	c := &TelegramChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		logger:      slog.Default().With("component", "telegram"),
	}
	b, err := bot.New(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, c.handleMessage)
	c.bot = b
	return c, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.bot.Start(runCtx)
	return nil
}

func (c *TelegramChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}
	_, err = c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   msg.Content,
	})
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

func (c *TelegramChannel) handleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	senderID := strconv.FormatInt(update.Message.From.ID, 10)
	if !allowed(c.config.AllowFrom, senderID) {
		c.logger.Debug("sender not in allowlist", "sender_id", senderID)
		return
	}
	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:   c.Name(),
		SenderID:  senderID,
		ChatID:    strconv.FormatInt(update.Message.Chat.ID, 10),
		Content:   update.Message.Text,
		Timestamp: time.Now(),
	})
}
