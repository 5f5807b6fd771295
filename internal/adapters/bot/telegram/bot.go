package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/relayd/internal/adapters/bot"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeoutSeconds = 30

type CommandHandler interface {
	Handle(ctx context.Context, cmd bot.Command) error
}

// Bot long-polls the Telegram Bot API and forwards commands to a handler.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

var _ bot.Chat = (*Bot)(nil)

func New(token string, logger *zap.Logger) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Bot{api: api, logger: logger}, nil
}

func (b *Bot) Run(ctx context.Context, handler CommandHandler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds

	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			cmd, ok := commandFromUpdate(update)
			if !ok {
				continue
			}
			if err := handler.Handle(ctx, cmd); err != nil {
				b.logger.Warn("handle command", zap.String("command", cmd.Name), zap.Error(err))
			}
		}
	}
}

func (b *Bot) Send(_ context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send telegram message: %w", err)
	}
	return sent.MessageID, nil
}

func (b *Bot) Edit(_ context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("edit telegram message: %w", err)
	}
	return nil
}

func commandFromUpdate(update tgbotapi.Update) (bot.Command, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return bot.Command{}, false
	}

	return bot.Command{
		ChatID:   msg.Chat.ID,
		SenderID: msg.From.ID,
		Name:     msg.Command(),
		Args:     strings.Fields(msg.CommandArguments()),
	}, true
}
