package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs messages instead of sending them. Used in dev mode
// and whenever no bot token is configured.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "NoopTelegram").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Debug().Int64("chat_id", chatID).Str("text", text).Msg("telegram message")
	return nil
}
