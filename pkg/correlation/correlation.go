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

// Package correlation propagates request IDs across the REST, gRPC and
// HTTP/3 transports and into log records.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// CorrelationIDKey is the context key for storing correlation IDs
	CorrelationIDKey contextKey = "correlation-id"

	// RequestIDHeader is the HTTP header for request IDs
	RequestIDHeader = "X-Request-ID"

	// CorrelationIDHeader is the HTTP header for correlation IDs
	CorrelationIDHeader = "X-Correlation-ID"

	// GRPCCorrelationIDKey is the gRPC metadata key for correlation IDs
	GRPCCorrelationIDKey = "x-correlation-id"

	// GRPCRequestIDKey is the gRPC metadata key for request IDs
	GRPCRequestIDKey = "x-request-id"

	// IDPrefix marks IDs generated by this service.
	IDPrefix = "db_"

	// MaxIDLength bounds caller supplied IDs.
	MaxIDLength = 128
)

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from context.
// Returns an empty string if no correlation ID is found.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new request ID of the form db_<uuid v4>.
func NewID() string {
	return IDPrefix + uuid.New().String()
}

// GetOrGenerate retrieves an existing correlation ID from context
// or generates a new one if none exists.
func GetOrGenerate(ctx context.Context) string {
	if id := GetCorrelationID(ctx); id != "" {
		return id
	}
	return NewID()
}

// FromHeaders returns the caller's request ID, preferring X-Request-ID over
// X-Correlation-ID, or a new ID when neither carries a valid value.
func FromHeaders(h http.Header) string {
	for _, name := range []string{RequestIDHeader, CorrelationIDHeader} {
		if id := h.Get(name); Valid(id) {
			return id
		}
	}
	return NewID()
}

// FromMetadata is the gRPC counterpart of FromHeaders.
func FromMetadata(md metadata.MD) string {
	for _, key := range []string{GRPCRequestIDKey, GRPCCorrelationIDKey} {
		if values := md.Get(key); len(values) > 0 && Valid(values[0]) {
			return values[0]
		}
	}
	return NewID()
}

// Valid reports whether a caller supplied ID is safe to echo and log:
// non-empty, bounded, printable ASCII without spaces.
func Valid(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}
