package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"track-billing/internal/config"
	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// sender is the slice of *tgbotapi.BotAPI the adapter needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RealTelegramBotAdapter sends messages through the Bot API. It never polls
// for updates; this service only pushes admin notifications.
type RealTelegramBotAdapter struct {
	bot sender
}

func NewRealTelegramBotAdapter(cfg *config.TelegramConfig) (*RealTelegramBotAdapter, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &RealTelegramBotAdapter{bot: bot}, nil
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	// Support early cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := r.bot.Send(msg)
	return err
}
