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
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jeremyhahn/go-databox/pkg/correlation"
)

// Output formats accepted by SlogConfig.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// SlogAdapter wraps a slog.Logger to implement the Logger interface
type SlogAdapter struct {
	logger *slog.Logger
}

// SlogConfig configures the slog adapter
type SlogConfig struct {
	// Logger is the underlying slog logger. If nil, one is built from
	// Handler or from Format, Output and Level.
	Logger *slog.Logger

	// Handler is used when Logger is nil.
	Handler slog.Handler

	// Level is the minimum log level to output
	Level Level

	// LevelVar, when set, is seeded with Level and consulted on every
	// record so the level can change at runtime.
	LevelVar *slog.LevelVar

	// Format selects the built-in handler: "text" (default) or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer

	// AddSource adds source code position to log records
	AddSource bool
}

// NewSlogAdapter creates a new slog adapter
func NewSlogAdapter(config *SlogConfig) *SlogAdapter {
	if config == nil {
		config = &SlogConfig{}
	}

	logger := config.Logger
	if logger == nil {
		handler := config.Handler
		if handler == nil {
			out := config.Output
			if out == nil {
				out = os.Stderr
			}
			var leveler slog.Leveler = config.Level.SlogLevel()
			if config.LevelVar != nil {
				config.LevelVar.Set(config.Level.SlogLevel())
				leveler = config.LevelVar
			}
			opts := &slog.HandlerOptions{
				Level:     leveler,
				AddSource: config.AddSource,
			}
			if strings.EqualFold(config.Format, FormatJSON) {
				handler = slog.NewJSONHandler(out, opts)
			} else {
				handler = slog.NewTextHandler(out, opts)
			}
		}
		logger = slog.New(handler)
	}

	return &SlogAdapter{logger: logger}
}

// Debug logs a debug message
func (l *SlogAdapter) Debug(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelDebug, msg, fields)
}

// Info logs an informational message
func (l *SlogAdapter) Info(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelInfo, msg, fields)
}

// Warn logs a warning message
func (l *SlogAdapter) Warn(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelWarn, msg, fields)
}

// Error logs an error message
func (l *SlogAdapter) Error(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelError, msg, fields)
}

// Fatal logs a fatal message and exits
func (l *SlogAdapter) Fatal(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelError, msg, fields)
	os.Exit(1)
}

// DebugContext logs a debug message with correlation ID from context
func (l *SlogAdapter) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, withCorrelationID(ctx, fields))
}

// InfoContext logs an informational message with correlation ID from context
func (l *SlogAdapter) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, withCorrelationID(ctx, fields))
}

// WarnContext logs a warning message with correlation ID from context
func (l *SlogAdapter) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, withCorrelationID(ctx, fields))
}

// ErrorContext logs an error message with correlation ID from context
func (l *SlogAdapter) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, withCorrelationID(ctx, fields))
}

// With creates a child logger with the given fields
func (l *SlogAdapter) With(fields ...Field) Logger {
	return &SlogAdapter{logger: l.logger.With(toArgs(fields)...)}
}

// WithError creates a child logger with an error field
func (l *SlogAdapter) WithError(err error) Logger {
	return l.With(Error(err))
}

// Slog exposes the underlying logger for libraries that take *slog.Logger.
func (l *SlogAdapter) Slog() *slog.Logger {
	return l.logger
}

func (l *SlogAdapter) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = fieldToAttr(f)
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

func withCorrelationID(ctx context.Context, fields []Field) []Field {
	if ctx == nil {
		return fields
	}
	if id := correlation.GetCorrelationID(ctx); id != "" {
		fields = append(fields, String("correlation_id", id))
	}
	return fields
}

func fieldToAttr(field Field) slog.Attr {
	switch v := field.Value.(type) {
	case string:
		return slog.String(field.Key, v)
	case int:
		return slog.Int(field.Key, v)
	case int64:
		return slog.Int64(field.Key, v)
	case bool:
		return slog.Bool(field.Key, v)
	default:
		return slog.Any(field.Key, v)
	}
}

func toArgs(fields []Field) []any {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = fieldToAttr(f)
	}
	return args
}

// SlogLevel maps l onto the slog levels. Fatal maps to error.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError, LevelFatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
