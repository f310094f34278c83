// Package telegram implements the Telegram bot channel for bmo.
//
// The channel long-polls the Bot API for updates. Outbound messages are
// plain text or JPEG photos. Every send is bound to the caller's context and
// to an HTTP client timeout slightly longer than the long-poll timeout.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/message"
)

const (
	defaultPollTimeout = 60
	requestSlack       = 15 * time.Second
)

// Channel implements channel.Channel over the Telegram Bot API.
type Channel struct {
	bot         *tgbotapi.BotAPI
	pollTimeout int
}

// New authenticates with the Bot API and returns a Telegram channel.
func New(cfg config.TelegramConfig) (*Channel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: telegram token", config.ErrMissingCredential)
	}

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	// The client timeout must outlast a long poll.
	client := &http.Client{Timeout: time.Duration(timeout)*time.Second + requestSlack}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}

	slog.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &Channel{bot: bot, pollTimeout: timeout}, nil
}

// Name returns the channel identifier.
func (c *Channel) Name() string { return "telegram" }

// Listen long-polls for updates and enqueues text messages as events.
func (c *Channel) Listen(ctx context.Context, events chan<- message.Event) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	updates := c.bot.GetUpdatesChan(u)

	slog.Info("telegram channel listening", "poll_timeout", c.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram channel shutting down")
			c.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := toEvent(update)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return nil
			}
		}
	}
}

// toEvent converts an update into an event. Updates without a text message
// (edits, callbacks, stickers) are skipped.
func toEvent(update tgbotapi.Update) (message.Event, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return message.Event{}, false
	}
	ev := message.NewEvent("telegram", msg.From.ID, msg.Chat.ID, msg.Text)
	ev.IsCommand = msg.IsCommand()
	return ev, true
}

// contextClient binds every request of one Bot API call to ctx.
type contextClient struct {
	ctx    context.Context
	client tgbotapi.HTTPClient
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// withContext returns a copy of the bot whose requests are cancelled with ctx.
func (c *Channel) withContext(ctx context.Context) *tgbotapi.BotAPI {
	bot := *c.bot
	bot.Client = contextClient{ctx: ctx, client: c.bot.Client}
	return &bot
}

// SendText sends a plain text message.
func (c *Channel) SendText(ctx context.Context, chatID int64, text string) error {
	if _, err := c.withContext(ctx).Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// SendPhoto uploads a JPEG with a caption.
func (c *Channel) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "bmo.jpg", Bytes: image})
	photo.Caption = caption
	if _, err := c.withContext(ctx).Send(photo); err != nil {
		return fmt.Errorf("telegram send photo: %w", err)
	}
	return nil
}

// SendTyping shows the "typing…" indicator in chatID.
func (c *Channel) SendTyping(ctx context.Context, chatID int64) error {
	if _, err := c.withContext(ctx).Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("telegram chat action: %w", err)
	}
	return nil
}

// Close stops the update poller.
func (c *Channel) Close() error {
	c.bot.StopReceivingUpdates()
	return nil
}
