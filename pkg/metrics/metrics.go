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

// Package metrics provides Prometheus instrumentation for databox. It counts
// split and combine operations per scheme, observes their latency and the
// sizes involved, classifies failures by error kind, and tracks transport
// traffic and process resources.
//
// No metric carries secret material. Labels are limited to operation, scheme,
// status and error kind, so cardinality stays fixed.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all databox metrics
	Namespace = "databox"

	// Label names
	LabelOperation  = "operation"
	LabelScheme     = "scheme"
	LabelStatus     = "status"
	LabelErrorType  = "error_type"
	LabelProtocol   = "protocol"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"
	LabelCheck      = "check"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSplit       = "split"
	OpCombine     = "combine"
	OpSelfTest    = "self_test"
	OpHealthCheck = "health_check"
)

var (
	// OperationsTotal counts split and combine calls by scheme and outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of secret sharing operations by type, scheme, and status",
		},
		[]string{LabelOperation, LabelScheme, LabelStatus},
	)

	// OperationDuration observes operation latency. Interpolation cost grows
	// with k squared times the field size, so the buckets reach a few seconds
	// for p4253 with many shares.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of secret sharing operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelOperation, LabelScheme},
	)

	// ErrorsTotal counts failures by error kind (e.g. "malformed_share").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, scheme, and error type",
		},
		[]string{LabelOperation, LabelScheme, LabelErrorType},
	)

	// SecretBytes observes secret lengths in bytes for split and combine.
	SecretBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "secret_bytes",
			Help:      "Length of split or recovered secrets in bytes",
			Buckets:   []float64{0, 16, 32, 64, 128, 256, 512, 1024, 4096},
		},
		[]string{LabelOperation, LabelScheme},
	)

	// SharesPerOperation observes N for splits and the share count for combines.
	SharesPerOperation = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "shares_per_operation",
			Help:      "Number of shares produced by a split or supplied to a combine",
			Buckets:   []float64{2, 3, 5, 10, 20, 50, 100, 255, 1000},
		},
		[]string{LabelOperation, LabelScheme},
	)

	// ActiveConnections tracks in-flight requests by protocol (http, grpc, quic).
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of active connections by protocol",
		},
		[]string{LabelProtocol},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// GRPCRequestsTotal tracks the total number of gRPC requests by method and status code.
	GRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total number of gRPC requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// GRPCRequestDuration tracks the duration of gRPC requests in seconds.
	GRPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of gRPC requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{LabelProtocol},
	)

	// CheckHealthy is 1 while a health check passes and 0 otherwise.
	CheckHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "check_healthy",
			Help:      "Indicates whether a health check is passing (1) or failing (0)",
		},
		[]string{LabelCheck},
	)

	// Goroutines is updated by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a split or combine with its duration and status.
//
// Example:
//
//	start := time.Now()
//	shares, err := engine.Split(secret, k, n)
//	status := metrics.StatusSuccess
//	if err != nil {
//	    status = metrics.StatusError
//	}
//	metrics.RecordOperation(metrics.OpSplit, "p521", status, time.Since(start).Seconds())
func RecordOperation(operation, scheme, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, scheme, status).Inc()
	OperationDuration.WithLabelValues(operation, scheme).Observe(duration)
}

// RecordSizes records the secret length and share count of an operation.
func RecordSizes(operation, scheme string, secretLen, shareCount int) {
	if !enabled.Load() {
		return
	}
	SecretBytes.WithLabelValues(operation, scheme).Observe(float64(secretLen))
	SharesPerOperation.WithLabelValues(operation, scheme).Observe(float64(shareCount))
}

// RecordError records a failure with its error kind.
func RecordError(operation, scheme, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, scheme, errorType).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// RecordGRPCRequest records a gRPC request with its duration and status.
// method is the full method name, e.g. "/databox.v1.SecretSharing/Split".
func RecordGRPCRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	GRPCRequestsTotal.WithLabelValues(method, statusCode).Inc()
	GRPCRequestDuration.WithLabelValues(method).Observe(duration)
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited(protocol string) {
	if !enabled.Load() {
		return
	}
	RateLimitedTotal.WithLabelValues(protocol).Inc()
}

// SetCheckHealth sets the gauge for a named health check.
func SetCheckHealth(check string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	CheckHealthy.WithLabelValues(check).Set(value)
}

// IncrementActiveConnections increments the active connection count for a protocol.
func IncrementActiveConnections(protocol string) {
	if !enabled.Load() {
		return
	}
	ActiveConnections.WithLabelValues(protocol).Inc()
}

// DecrementActiveConnections decrements the active connection count for a protocol.
func DecrementActiveConnections(protocol string) {
	if !enabled.Load() {
		return
	}
	ActiveConnections.WithLabelValues(protocol).Dec()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
