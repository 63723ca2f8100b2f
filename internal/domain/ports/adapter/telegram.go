// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// TelegramBotAdapter delivers plain text to a chat. Used for admin alerts.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
