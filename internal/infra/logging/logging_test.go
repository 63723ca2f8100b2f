package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"track-billing/internal/infra/logging"
)

func TestWith_AttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	ctx = logging.WithUserID(ctx, "user-1")
	ctx = logging.WithPaymentID(ctx, "pay-1")
	logging.With(ctx, &base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("bad log line %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{"trace_id": "trace-1", "user_id": "user-1", "payment_id": "pay-1"} {
		if line[k] != want {
			t.Errorf("%s = %v, want %s", k, line[k], want)
		}
	}
	if got := logging.TraceIDFrom(ctx); got != "trace-1" {
		t.Errorf("TraceIDFrom = %q", got)
	}
}

func TestWith_NoContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	logging.With(context.Background(), &base).Info().Msg("plain")
	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Errorf("unexpected trace_id in %q", buf.String())
	}
}

func TestRedact(t *testing.T) {
	if got := logging.Redact("short"); got != "***" {
		t.Errorf("short value: %q", got)
	}
	if got := logging.Redact("abcdef0123456789"); got != "abcd...89" {
		t.Errorf("long value: %q", got)
	}
}
