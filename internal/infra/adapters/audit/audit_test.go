//go:build !integration

package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/infra/worker"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type mockBot struct {
	mu   sync.Mutex
	sent map[int64][]string
	err  error
}

func (m *mockBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[int64][]string{}
	}
	m.sent[chatID] = append(m.sent[chatID], text)
	return m.err
}

type mockSink struct {
	PublishFunc func(ctx context.Context, ev adapter.AuditEvent) error
}

func (m *mockSink) Publish(ctx context.Context, ev adapter.AuditEvent) error {
	return m.PublishFunc(ctx, ev)
}

func TestTelegramSink(t *testing.T) {
	ev := adapter.AuditEvent{Type: adapter.AuditPaymentCompleted, UserID: "u1", PaymentID: "p1", Amount: 199}

	t.Run("should notify every admin about completed payments", func(t *testing.T) {
		bot := &mockBot{}
		sink := NewTelegramSink(bot, []int64{1, 2})

		if err := sink.Publish(context.Background(), ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(bot.sent[1]) != 1 || len(bot.sent[2]) != 1 {
			t.Fatalf("expected one message per admin, got %v", bot.sent)
		}
		if !strings.Contains(bot.sent[1][0], "payment=p1") || !strings.Contains(bot.sent[1][0], "amount=199") {
			t.Errorf("unexpected text %q", bot.sent[1][0])
		}
	})

	t.Run("should ignore unselected event types", func(t *testing.T) {
		bot := &mockBot{}
		sink := NewTelegramSink(bot, []int64{1})
		_ = sink.Publish(context.Background(), adapter.AuditEvent{Type: adapter.AuditSubscriptionRenewed})
		if len(bot.sent) != 0 {
			t.Errorf("expected no messages, got %v", bot.sent)
		}
	})

	t.Run("should report delivery errors", func(t *testing.T) {
		bot := &mockBot{err: errors.New("blocked")}
		sink := NewTelegramSink(bot, []int64{1})
		if err := sink.Publish(context.Background(), ev); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestAsyncSink(t *testing.T) {
	t.Run("should deliver in the background and never fail the caller", func(t *testing.T) {
		pool := worker.NewPool(1, 4, newTestLogger())
		pool.Start(context.Background())
		defer pool.Stop()

		got := make(chan adapter.AuditEvent, 1)
		inner := &mockSink{PublishFunc: func(ctx context.Context, ev adapter.AuditEvent) error {
			got <- ev
			return errors.New("sink down")
		}}
		sink := NewAsyncSink(inner, pool, newTestLogger())

		if err := sink.Publish(context.Background(), adapter.AuditEvent{Type: adapter.AuditPaymentFailed}); err != nil {
			t.Fatalf("Publish must not fail: %v", err)
		}
		select {
		case ev := <-got:
			if ev.At.IsZero() {
				t.Error("expected timestamp to be stamped")
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	})

	t.Run("should drop silently when the queue is full", func(t *testing.T) {
		pool := worker.NewPool(1, 1, newTestLogger()) // not started
		inner := &mockSink{PublishFunc: func(ctx context.Context, ev adapter.AuditEvent) error { return nil }}
		sink := NewAsyncSink(inner, pool, newTestLogger())

		_ = sink.Publish(context.Background(), adapter.AuditEvent{Type: adapter.AuditPaymentCreated})
		if err := sink.Publish(context.Background(), adapter.AuditEvent{Type: adapter.AuditPaymentCreated}); err != nil {
			t.Fatalf("expected nil on drop, got %v", err)
		}
	})
}

func TestMultiSink(t *testing.T) {
	t.Run("should call every sink and keep the first error", func(t *testing.T) {
		calls := 0
		first := errors.New("first")
		m := MultiSink{
			&mockSink{PublishFunc: func(ctx context.Context, ev adapter.AuditEvent) error { calls++; return first }},
			&mockSink{PublishFunc: func(ctx context.Context, ev adapter.AuditEvent) error { calls++; return errors.New("second") }},
		}
		if err := m.Publish(context.Background(), adapter.AuditEvent{}); !errors.Is(err, first) {
			t.Fatalf("expected first error, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})
}
