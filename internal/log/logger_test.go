package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"myfinance/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFrom("info", "json")
	cfg.Output = &buf
	logger := New(cfg).WithComponent(ComponentLedger)

	logger.Info("hello", FieldOwnerID, "alice")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentLedger {
		t.Errorf("component = %v, want %s", rec[FieldComponent], ComponentLedger)
	}
	if rec[FieldOwnerID] != "alice" {
		t.Errorf("owner_id = %v, want alice", rec[FieldOwnerID])
	}
}

func TestFromContext(t *testing.T) {
	logger := Discard().WithComponent(ComponentWorker)
	ctx := WithContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Errorf("FromContext() returned a different logger")
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("fallback component = %q, want unknown", got.Component())
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.NewValidationError("amount", "bad"), ErrorTypeValidation},
		{fmt.Errorf("wrapped: %w", &core.NotFoundError{Entity: "account", ID: "x"}), ErrorTypeNotFound},
		{&core.ConflictError{Message: "dup"}, ErrorTypeConflict},
		{core.WrapStorage("commit", errors.New("disk full")), ErrorTypeDatabase},
		{errors.New("boom"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestLogOperationLevels(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFrom("debug", "text")
	cfg.Output = &buf
	sl := NewStructuredLogger(New(cfg).WithComponent(ComponentLedger))

	sl.LogOperation(context.Background(), OpCreateAccount, "alice", time.Now(), core.NewValidationError("name", "empty"), nil)
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), ErrorTypeValidation) {
		t.Errorf("expected warn with validation type, got %s", buf.String())
	}

	buf.Reset()
	sl.LogOperation(context.Background(), OpCreateAccount, "alice", time.Now(), core.WrapStorage("commit", errors.New("io")), nil)
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected error level, got %s", buf.String())
	}
}
