// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-databox.
//
// go-databox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/correlation"
)

func newTestAdapter(level slog.Level) (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})
	return NewSlogAdapter(&SlogConfig{Handler: handler}), &buf
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
		{Level(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.level.String(); result != tt.expected {
				t.Errorf("Level.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" warn ", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldConstructors(t *testing.T) {
	err := errors.New("boom")
	tests := []struct {
		name  string
		field Field
		key   string
		value interface{}
	}{
		{"string", String("k", "v"), "k", "v"},
		{"int", Int("n", 3), "n", 3},
		{"int64", Int64("n", 4), "n", int64(4)},
		{"bool", Bool("b", true), "b", true},
		{"duration", Duration("d", time.Second), "d", time.Second},
		{"error", Error(err), "error", err},
		{"any", Any("a", 1.5), "a", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key {
				t.Errorf("Key = %v, want %v", tt.field.Key, tt.key)
			}
			if tt.field.Value != tt.value {
				t.Errorf("Value = %v, want %v", tt.field.Value, tt.value)
			}
		})
	}

	s := Strings("schemes", []string{"p521", "gf256"})
	if v, ok := s.Value.([]string); !ok || len(v) != 2 {
		t.Errorf("Strings() value = %v", s.Value)
	}
}

func TestNewSlogAdapter_NilConfig(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	if adapter == nil || adapter.logger == nil {
		t.Fatal("NewSlogAdapter() returned an unusable adapter")
	}
}

func TestNewSlogAdapter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(&SlogConfig{
		Format: FormatJSON,
		Output: &buf,
		Level:  LevelInfo,
	})

	adapter.Info("split completed", Int("threshold", 3), String("scheme", "p521"))

	output := buf.String()
	if !strings.Contains(output, `"msg":"split completed"`) {
		t.Errorf("output should contain JSON message, got: %s", output)
	}
	if !strings.Contains(output, `"threshold":3`) {
		t.Errorf("output should contain JSON field, got: %s", output)
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelDebug)

	adapter.Debug("debug message", String("key", "value"))
	adapter.Info("info message")
	adapter.Warn("warn message")
	adapter.Error("error message")

	output := buf.String()
	for _, want := range []string{
		"DEBUG", "debug message", "key=value",
		"INFO", "info message",
		"WARN", "warn message",
		"ERROR", "error message",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got: %s", want, output)
		}
	}
}

func TestSlogAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(&SlogConfig{Output: &buf, Level: LevelWarn})

	adapter.Debug("hidden debug")
	adapter.Info("hidden info")
	adapter.Warn("visible warn")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("messages below the level should be dropped, got: %s", output)
	}
	if !strings.Contains(output, "visible warn") {
		t.Errorf("warn should be logged, got: %s", output)
	}
}

func TestSlogAdapter_With(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelInfo)

	child := adapter.With(String("component", "rest"))
	child.Info("child message", Int("shares", 5))

	output := buf.String()
	if !strings.Contains(output, "component=rest") || !strings.Contains(output, "shares=5") {
		t.Errorf("output should contain both fields, got: %s", output)
	}
	if strings.Count(output, "component=rest") != 1 {
		t.Errorf("child fields should appear once, got: %s", output)
	}
}

func TestSlogAdapter_WithChaining(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelInfo)

	adapter.With(String("a", "1")).With(String("b", "2")).Info("chained")
	adapter.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "a=1") || !strings.Contains(lines[0], "b=2") {
		t.Errorf("chained logger lost fields: %s", lines[0])
	}
	if strings.Contains(lines[1], "a=1") {
		t.Errorf("parent logger should not inherit child fields: %s", lines[1])
	}
}

func TestSlogAdapter_WithError(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelInfo)

	adapter.WithError(errors.New("test error")).Info("message with error")

	if !strings.Contains(buf.String(), "test error") {
		t.Errorf("output should contain error value, got: %s", buf.String())
	}
}

func TestSlogAdapter_ContextLogging(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelDebug)
	ctx := correlation.WithCorrelationID(context.Background(), "db_test-123")

	adapter.DebugContext(ctx, "debug")
	adapter.InfoContext(ctx, "info")
	adapter.WarnContext(ctx, "warn")
	adapter.ErrorContext(ctx, "error")

	if n := strings.Count(buf.String(), "correlation_id=db_test-123"); n != 4 {
		t.Errorf("expected correlation ID on 4 lines, got %d: %s", n, buf.String())
	}
}

func TestSlogAdapter_ContextWithoutCorrelationID(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelInfo)

	adapter.InfoContext(context.Background(), "plain")
	//nolint:staticcheck // nil context is tolerated
	adapter.InfoContext(nil, "nil context")

	if strings.Contains(buf.String(), "correlation_id") {
		t.Errorf("no correlation ID expected, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "nil context") {
		t.Errorf("nil context should still log, got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelInfo)
	ctx := correlation.WithCorrelationID(context.Background(), "db_abc")

	FromContext(ctx, adapter).Info("scoped")
	if !strings.Contains(buf.String(), "correlation_id=db_abc") {
		t.Errorf("FromContext should attach correlation ID, got: %s", buf.String())
	}

	if FromContext(ctx, nil) == nil {
		t.Error("FromContext(nil logger) should return a usable logger")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	l.With(String("k", "v")).Info("dropped")
}

func TestSlogAdapter_Slog(t *testing.T) {
	adapter, buf := newTestAdapter(slog.LevelInfo)
	adapter.Slog().Info("through slog")
	if !strings.Contains(buf.String(), "through slog") {
		t.Errorf("Slog() should share the handler, got: %s", buf.String())
	}
}
