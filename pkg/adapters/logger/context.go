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
)

// ContextLogger is implemented by loggers that attach the request's
// correlation ID.
type ContextLogger interface {
	Logger
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
}

// Discard returns a logger that drops everything.
func Discard() *SlogAdapter {
	return NewSlogAdapter(&SlogConfig{
		Handler: slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}),
	})
}

// FromContext logs through l with the correlation ID from ctx when l
// supports it, and plainly otherwise.
func FromContext(ctx context.Context, l Logger) Logger {
	if l == nil {
		return Discard()
	}
	if _, ok := l.(ContextLogger); !ok {
		return l
	}
	fields := withCorrelationID(ctx, nil)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
