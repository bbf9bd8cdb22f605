//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"jobboard-premium/internal/config"
)

func TestWith_AttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(config.LogConfig{Level: "info", Format: "json"}, false, &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithPaymentID(ctx, "pay-1")

	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{"trace_id": "trace-1", "user_id": "user-1", "payment_id": "pay-1", "message": "hello"} {
		if line[k] != want {
			t.Errorf("expected %s=%q, got %v", k, want, line[k])
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, false, &buf)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line should be filtered at warn level, got %q", buf.String())
	}
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Error("warn line should be written")
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("sk_test_abcdefgh", false); got != "sk_t...gh" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("visible", true); got != "visible" {
		t.Errorf("dev mode must not redact, got %q", got)
	}
	if UserIDFrom(context.Background()) != "" {
		t.Error("empty context must not carry a user id")
	}
}
