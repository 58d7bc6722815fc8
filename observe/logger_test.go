package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, m)
	}
	return entries
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	ctx := context.Background()
	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped")
	logger.Warn(ctx, "kept warn")
	logger.Error(ctx, "kept error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("levels = %v %v, want warn error", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_WithMessageAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	msgLogger := logger.WithMessage(MsgMeta{
		Kind:           "order.create",
		MessageID:      42,
		CorrelationID:  7,
		HasCorrelation: true,
	})
	msgLogger.Info(context.Background(), "dispatching")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e["msg.kind"] != "order.create" {
		t.Errorf("msg.kind = %v, want order.create", e["msg.kind"])
	}
	if e["msg.id"] != "42" {
		t.Errorf("msg.id = %v, want 42", e["msg.id"])
	}
	if e["msg.correlation_id"] != "7" {
		t.Errorf("msg.correlation_id = %v, want 7", e["msg.correlation_id"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "send",
		Field{Key: "payload", Value: "sensitive"},
		Field{Key: "kind", Value: "ping"},
	)

	entries := decodeLines(t, &buf)
	if entries[0]["payload"] != "[REDACTED]" {
		t.Errorf("payload = %v, want [REDACTED]", entries[0]["payload"])
	}
	if entries[0]["kind"] != "ping" {
		t.Errorf("kind = %v, want ping", entries[0]["kind"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger_DoesNothing(t *testing.T) {
	logger := NopLogger()

	// Must not panic, and WithMessage must return a usable logger.
	logger.WithMessage(MsgMeta{Kind: "x"}).Info(context.Background(), "ignored")
}
