package audit

import (
	"context"
	"fmt"
	"strings"

	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.AuditSink = (*TelegramSink)(nil)

// TelegramSink forwards money-relevant events to admin chats.
type TelegramSink struct {
	bot    adapter.TelegramBotAdapter
	admins []int64
	types  map[adapter.AuditEventType]struct{}
}

// NewTelegramSink notifies admins about completed and failed payments
// unless a narrower set of types is given.
func NewTelegramSink(bot adapter.TelegramBotAdapter, admins []int64, types ...adapter.AuditEventType) *TelegramSink {
	if len(types) == 0 {
		types = []adapter.AuditEventType{adapter.AuditPaymentCompleted, adapter.AuditPaymentFailed}
	}
	set := make(map[adapter.AuditEventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return &TelegramSink{bot: bot, admins: admins, types: set}
}

func (s *TelegramSink) Publish(ctx context.Context, ev adapter.AuditEvent) error {
	if _, ok := s.types[ev.Type]; !ok || len(s.admins) == 0 {
		return nil
	}
	text := formatEvent(ev)
	var errs []string
	for _, id := range s.admins {
		if err := s.bot.SendMessage(ctx, id, text); err != nil {
			errs = append(errs, fmt.Sprintf("%d: %v", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telegram audit: %s", strings.Join(errs, "; "))
	}
	return nil
}

func formatEvent(ev adapter.AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] user=%s", ev.Type, ev.UserID)
	if ev.PaymentID != "" {
		fmt.Fprintf(&b, " payment=%s", ev.PaymentID)
	}
	if ev.SubscriptionID != "" {
		fmt.Fprintf(&b, " subscription=%s", ev.SubscriptionID)
	}
	if ev.TrackID != "" {
		fmt.Fprintf(&b, " track=%s", ev.TrackID)
	}
	if ev.Amount > 0 {
		fmt.Fprintf(&b, " amount=%d", ev.Amount)
	}
	return b.String()
}
