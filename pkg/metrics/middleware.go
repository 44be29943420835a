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

package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// Protocol identifiers
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
	ProtocolQUIC = "quic"
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware records request count, latency and in-flight requests.
//
//	router := chi.NewRouter()
//	router.Use(metrics.HTTPMiddleware)
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		protocol := ProtocolHTTP
		if r.ProtoMajor == 3 {
			protocol = ProtocolQUIC
		}
		IncrementActiveConnections(protocol)
		defer DecrementActiveConnections(protocol)

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		RecordHTTPRequest(r.Method, strconv.Itoa(wrapper.statusCode), time.Since(start).Seconds())
		if wrapper.statusCode == http.StatusTooManyRequests {
			RecordRateLimited(protocol)
		}
	})
}

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GRPCUnaryServerInterceptor returns a gRPC unary server interceptor that records request metrics.
//
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(metrics.GRPCUnaryServerInterceptor()),
//	)
func GRPCUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !IsEnabled() {
			return handler(ctx, req)
		}

		start := time.Now()
		IncrementActiveConnections(ProtocolGRPC)
		defer DecrementActiveConnections(ProtocolGRPC)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		RecordGRPCRequest(info.FullMethod, code.String(), time.Since(start).Seconds())
		if code == codes.ResourceExhausted {
			RecordRateLimited(ProtocolGRPC)
		}
		return resp, err
	}
}

// ConnectionTracker tracks a connection for listeners without middleware
// support, such as the QUIC listener.
type ConnectionTracker struct {
	protocol string
	started  time.Time
}

// NewConnectionTracker increments the active connections counter for protocol.
//
//	tracker := metrics.NewConnectionTracker(metrics.ProtocolQUIC)
//	defer tracker.Close()
func NewConnectionTracker(protocol string) *ConnectionTracker {
	if IsEnabled() {
		IncrementActiveConnections(protocol)
	}
	return &ConnectionTracker{
		protocol: protocol,
		started:  time.Now(),
	}
}

// Close decrements the active connections counter for this protocol.
func (ct *ConnectionTracker) Close() {
	if IsEnabled() {
		DecrementActiveConnections(ct.protocol)
	}
}

// Duration returns the time elapsed since the connection was established.
func (ct *ConnectionTracker) Duration() time.Duration {
	return time.Since(ct.started)
}
