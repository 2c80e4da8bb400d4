package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot talks to the Telegram Bot API: it delivers notifications and feeds
// incoming messages to a Handler.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewBot authenticates with the Bot API. An empty endpoint selects the public API.
func NewBot(token, endpoint string, logger *zap.Logger) (*Bot, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Bot{api: api, logger: logger}, nil
}

// SetCommands publishes the command menu.
func (b *Bot) SetCommands() error {
	cmds := make([]tgbotapi.BotCommand, 0, len(Commands))
	for _, c := range Commands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

// Send delivers a plain text message. The Bot API client has no context
// support, so ctx only bounds how long the caller waits.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	return b.deliver(ctx, Reply{ChatID: chatID, Text: text})
}

func (b *Bot) deliver(ctx context.Context, r Reply) error {
	msg := tgbotapi.NewMessage(r.ChatID, r.Text)
	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	done := make(chan error, 1)
	go func() {
		_, err := b.api.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run long-polls for updates and answers them with h until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, h *Handler) error {
	if err := b.SetCommands(); err != nil {
		b.logger.Warn("set bot commands", zap.Error(err))
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || upd.Message.Chat == nil {
				continue
			}
			b.dispatch(ctx, h, upd.Message)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, h *Handler, m *tgbotapi.Message) {
	u := Update{ChatID: m.Chat.ID, Text: m.Text}
	if m.From != nil {
		u.FirstName = m.From.FirstName
	}
	reply, ok := h.Handle(ctx, u)
	if !ok {
		return
	}
	if err := b.deliver(ctx, reply); err != nil {
		b.logger.Warn("reply failed", zap.Int64("chat_id", reply.ChatID), zap.Error(err))
	}
}
