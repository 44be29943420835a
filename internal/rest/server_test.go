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

package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/correlation"
	"github.com/jeremyhahn/go-databox/pkg/health"
	"github.com/jeremyhahn/go-databox/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDs(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	id := rec.Header().Get(correlation.RequestIDHeader)
	assert.True(t, strings.HasPrefix(id, correlation.IDPrefix), id)
	assert.Equal(t, id, rec.Header().Get(correlation.CorrelationIDHeader))

	rec = doJSON(t, h, http.MethodGet, "/health", nil, correlation.RequestIDHeader, "client-123")
	assert.Equal(t, "client-123", rec.Header().Get(correlation.RequestIDHeader))

	rec = doJSON(t, h, http.MethodGet, "/health", nil, correlation.CorrelationIDHeader, "corr-9")
	assert.Equal(t, "corr-9", rec.Header().Get(correlation.RequestIDHeader))

	// Header injection attempts are replaced.
	rec = doJSON(t, h, http.MethodGet, "/health", nil, correlation.RequestIDHeader, "bad id\twith tab")
	assert.True(t, strings.HasPrefix(rec.Header().Get(correlation.RequestIDHeader), correlation.IDPrefix))
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		h := newTestServer(t, func(c *Config) { c.CORSOrigins = []string{"*"} }).Handler()

		rec := doJSON(t, h, http.MethodGet, "/health", nil, "Origin", "https://app.example")
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		h := newTestServer(t, func(c *Config) { c.CORSOrigins = []string{"https://app.example"} }).Handler()

		rec := doJSON(t, h, http.MethodGet, "/health", nil, "Origin", "https://app.example")
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))

		rec = doJSON(t, h, http.MethodGet, "/health", nil, "Origin", "https://evil.example")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		h := newTestServer(t, func(c *Config) { c.CORSOrigins = []string{"*"} }).Handler()

		rec := doJSON(t, h, http.MethodOptions, "/v1/shamir/secret/split", nil, "Origin", "https://app.example")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	})

	t.Run("disabled", func(t *testing.T) {
		h := newTestServer(t, nil).Handler()

		rec := doJSON(t, h, http.MethodGet, "/health", nil, "Origin", "https://app.example")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimiting(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{Enabled: true, RequestsPerMinute: 60, Burst: 2})
	defer limiter.Stop()

	h := newTestServer(t, func(c *Config) { c.RateLimiter = limiter }).Handler()

	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(ratelimit.RetryAfterHeader))
	assert.Contains(t, rec.Body.String(), "rate_limited")

	// A different client has its own bucket.
	rec = doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil, "X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Probes are not limited.
	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(t, nil)

	h := srv.RecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, KindInternal, decodeBody[ErrorResponse](t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRequestTimeout(t *testing.T) {
	var deadline time.Time
	h := requestTimeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
		<-r.Context().Done()
		handleError(w, r.Context().Err())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, deadline.IsZero())
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "timeout", decodeBody[ErrorResponse](t, rec).Error)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrInvalidRequest, http.StatusBadRequest},
		{ErrRequestTooLarge, http.StatusRequestEntityTooLarge},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, 499},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, mapErrorToStatusCode(tt.err), tt.err.Error())
	}

	rec := httptest.NewRecorder()
	handleError(rec, errors.New("disk on fire"))
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

type stubChecker struct {
	ready []health.CheckResult
}

func (s stubChecker) Live(context.Context) health.CheckResult {
	return health.CheckResult{Name: "live", Status: health.StatusHealthy}
}

func (s stubChecker) Ready(context.Context) []health.CheckResult { return s.ready }

func (s stubChecker) Startup(context.Context) health.CheckResult {
	return health.CheckResult{Name: "startup", Status: health.StatusUnhealthy, Message: "starting"}
}

func TestHealthProbesWithChecker(t *testing.T) {
	checker := stubChecker{ready: []health.CheckResult{
		{Name: "entropy", Status: health.StatusHealthy},
		{Name: "selftest", Status: health.StatusUnhealthy, Message: "mismatch"},
	}}
	h := newTestServer(t, func(c *Config) { c.HealthChecker = checker }).Handler()

	rec := doJSON(t, h, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[HealthCheckResponse](t, rec)
	assert.Equal(t, health.StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 2)

	rec = doJSON(t, h, http.MethodGet, "/health/startup", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(t, func(c *Config) {
		c.MetricsPath = "/metrics"
		c.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("databox_up 1\n"))
		})
	}).Handler()

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "databox_up")
}

func TestServeAndStop(t *testing.T) {
	srv := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, ln.Addr().(*net.TCPAddr).Port, srv.Port())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, <-done)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	_, err = NewServer(&Config{})
	assert.Error(t, err)
}
