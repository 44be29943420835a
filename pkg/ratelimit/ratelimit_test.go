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

package ratelimit

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func TestNew(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             10,
	})
	defer limiter.Stop()

	if !limiter.IsEnabled() {
		t.Error("Expected limiter to be enabled")
	}
	if stats := limiter.Stats(); stats["enabled"] != true {
		t.Error("Expected enabled to be true in stats")
	}
}

func TestNew_Defaults(t *testing.T) {
	limiter := New(&Config{Enabled: true})
	defer limiter.Stop()

	stats := limiter.Stats()
	if stats["rate_per_min"] != float64(DefaultRequestsPerMinute) {
		t.Errorf("Expected default rate, got %v", stats["rate_per_min"])
	}
	if stats["burst"] != DefaultRequestsPerMinute {
		t.Errorf("Expected burst to default to rate, got %v", stats["burst"])
	}
}

func TestAllow(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60, // 1 per second
		Burst:             5,
	})
	defer limiter.Stop()

	clientID := "test-client"

	for i := 0; i < 5; i++ {
		if !limiter.Allow(clientID) {
			t.Errorf("Request %d should be allowed (burst)", i+1)
		}
	}

	if limiter.Allow(clientID) {
		t.Error("Request should be denied after burst exhausted")
	}

	time.Sleep(1100 * time.Millisecond)
	if !limiter.Allow(clientID) {
		t.Error("Request should be allowed after waiting")
	}
}

func TestCheck_RetryAfter(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 6, // one token every 10s
		Burst:             1,
	})
	defer limiter.Stop()

	if ok, _ := limiter.Check("c"); !ok {
		t.Fatal("first request should be allowed")
	}

	ok, wait := limiter.Check("c")
	if ok {
		t.Fatal("second request should be limited")
	}
	if wait <= 5*time.Second || wait > 10*time.Second {
		t.Errorf("unexpected wait %v", wait)
	}

	// a denied request does not consume the next token
	ok, wait2 := limiter.Check("c")
	if ok || wait2 > wait {
		t.Errorf("denied requests should not push the wait out: %v then %v", wait, wait2)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := map[time.Duration]int{
		0:                       1,
		10 * time.Millisecond:   1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		59 * time.Second:        59,
	}
	for in, want := range tests {
		if got := RetryAfterSeconds(in); got != want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestDisabledLimiter(t *testing.T) {
	limiter := New(&Config{Enabled: false, RequestsPerMinute: 1, Burst: 1})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		if !limiter.Allow("client") {
			t.Fatal("disabled limiter should allow every request")
		}
	}
}

func TestNew_NilConfig(t *testing.T) {
	limiter := New(nil)
	defer limiter.Stop()

	if limiter.IsEnabled() {
		t.Error("nil config should disable limiting")
	}
}

func TestStop_Idempotent(t *testing.T) {
	limiter := New(&Config{Enabled: true})
	limiter.Stop()
	limiter.Stop()
}

func TestPerClientLimiting(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             1,
	})
	defer limiter.Stop()

	if !limiter.Allow("client-1") {
		t.Error("First request for client1 should be allowed")
	}
	if limiter.Allow("client-1") {
		t.Error("Second request for client1 should be denied")
	}
	if !limiter.Allow("client-2") {
		t.Error("First request for client2 should be allowed")
	}
}

func TestCleanup(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		CleanupInterval:   100 * time.Millisecond,
		MaxIdle:           200 * time.Millisecond,
	})
	defer limiter.Stop()

	limiter.Allow("test-client")

	limiter.mu.Lock()
	if len(limiter.limiters) != 1 {
		t.Errorf("Expected 1 limiter, got %d", len(limiter.limiters))
	}
	limiter.mu.Unlock()

	time.Sleep(400 * time.Millisecond)

	limiter.mu.Lock()
	if len(limiter.limiters) != 0 {
		t.Errorf("Expected 0 limiters after cleanup, got %d", len(limiter.limiters))
	}
	limiter.mu.Unlock()
}

func TestMiddleware(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             2,
	})
	defer limiter.Stop()

	handler := Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/shamir/secret/split", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/shamir/secret/split", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", rr.Code)
	}
	if rr.Header().Get(RetryAfterHeader) == "" {
		t.Error("Expected Retry-After header")
	}
	if !strings.Contains(rr.Body.String(), "rate_limited") {
		t.Errorf("unexpected body %q", rr.Body.String())
	}

	// a different API key from the same address has its own bucket
	req = httptest.NewRequest(http.MethodPost, "/v1/shamir/secret/split", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	req.Header.Set("Authorization", "Bearer key-one")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("keyed request should have its own bucket, got %d", rr.Code)
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		wantPrefix string
		want       string
	}{
		{
			name:       "anonymous",
			remoteAddr: "192.168.1.1:1234",
			want:       "anon:192.168.1.1",
		},
		{
			name:       "bearer token",
			headers:    map[string]string{"Authorization": "Bearer secret-key"},
			remoteAddr: "192.168.1.1:1234",
			wantPrefix: "key:",
		},
		{
			name:       "api key header",
			headers:    map[string]string{"X-API-Key": "secret-key"},
			remoteAddr: "192.168.1.1:1234",
			wantPrefix: "key:",
		},
		{
			name:       "non bearer authorization",
			headers:    map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			remoteAddr: "10.0.0.1:1",
			want:       "anon:10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			got := ClientKey(req)
			if tt.want != "" && got != tt.want {
				t.Errorf("ClientKey() = %q, want %q", got, tt.want)
			}
			if tt.wantPrefix != "" {
				if !strings.HasPrefix(got, tt.wantPrefix) {
					t.Errorf("ClientKey() = %q, want prefix %q", got, tt.wantPrefix)
				}
				if strings.Contains(got, "secret-key") {
					t.Error("raw API key leaked into client key")
				}
			}
		})
	}
}

func TestClientKey_SameKeyAcrossHeaders(t *testing.T) {
	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer abc")
	header := httptest.NewRequest(http.MethodGet, "/", nil)
	header.Header.Set("X-API-Key", "abc")

	if ClientKey(bearer) != ClientKey(header) {
		t.Error("the same key should map to the same bucket")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{
			name:       "X-Forwarded-For",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1"},
			remoteAddr: "192.168.1.1:1234",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.1"},
			remoteAddr: "192.168.1.1:1234",
			expected:   "203.0.113.1",
		},
		{
			name:       "RemoteAddr fallback",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.1:1234",
			expected:   "192.168.1.1",
		},
		{
			name:       "RemoteAddr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.1",
			expected:   "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if ip := getClientIP(req); ip != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, ip)
			}
		})
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	limiter := New(&Config{Enabled: true, RequestsPerMinute: 60, Burst: 1})
	defer limiter.Stop()

	interceptor := UnaryServerInterceptor(limiter)
	info := &grpc.UnaryServerInfo{FullMethod: "/databox.v1.SecretSharing/Split"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5555},
	})

	resp, err := interceptor(ctx, nil, info, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("first call should pass: %v", err)
	}

	_, err = interceptor(ctx, nil, info, handler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}

	keyed := metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", "Bearer other"))
	if _, err := interceptor(keyed, nil, info, handler); err != nil {
		t.Fatalf("keyed call should use its own bucket: %v", err)
	}
}

func TestClientKeyFromContext(t *testing.T) {
	if got := clientKeyFromContext(context.Background()); got != "anon:unknown" {
		t.Errorf("expected anon:unknown, got %q", got)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "k"))
	if got := clientKeyFromContext(ctx); !strings.HasPrefix(got, "key:") {
		t.Errorf("expected key bucket, got %q", got)
	}
}
