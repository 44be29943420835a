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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-databox/pkg/adapters/auth"
	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	svc, err := threshold.NewService(&threshold.Config{Logger: logger.Discard()})
	require.NoError(t, err)

	cfg := &Config{
		Service: svc,
		Version: "test",
		Logger:  logger.Discard(),
	}
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func split(t *testing.T, h http.Handler, req SplitRequest) SplitResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/v1/shamir/secret/split", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[SplitResponse](t, rec)
}

func TestSplitCombineRoundTrip(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	for _, scheme := range threshold.AllSchemes() {
		t.Run(scheme, func(t *testing.T) {
			resp := split(t, h, SplitRequest{
				Secret:    "correct horse battery staple",
				Shares:    5,
				Threshold: 3,
				Scheme:    scheme,
			})
			assert.Len(t, resp.Shares, 5)
			assert.Equal(t, 5, resp.Count)
			assert.Equal(t, 3, resp.Threshold)
			assert.Equal(t, "utf-8", resp.Encoding)
			assert.Equal(t, scheme, resp.Scheme)
			assert.Equal(t, 1, resp.Version)

			rec := doJSON(t, h, http.MethodPost, "/v1/shamir/secret/combine", CombineRequest{
				Shares: []string{resp.Shares[4], resp.Shares[0], resp.Shares[2]},
			})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			out := decodeBody[CombineResponse](t, rec)
			assert.Equal(t, "correct horse battery staple", out.Secret)
			assert.Equal(t, "utf-8", out.Encoding)
			assert.Equal(t, scheme, out.Scheme)
		})
	}
}

func TestSplitDefaultsToP521(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	resp := split(t, h, SplitRequest{Secret: "x", Shares: 2, Threshold: 2})
	assert.Equal(t, "p521", resp.Scheme)
	for _, s := range resp.Shares {
		assert.True(t, strings.HasPrefix(s, "sss:p521:"), s)
	}
}

func TestBase64Secrets(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	// 0xff 0x00 is not valid UTF-8.
	resp := split(t, h, SplitRequest{Secret: "_wA=", Shares: 3, Threshold: 2, Encoding: "base64"})
	assert.Equal(t, "base64", resp.Encoding)

	rec := doJSON(t, h, http.MethodPost, "/v1/shamir/secret/combine", CombineRequest{Shares: resp.Shares[:2]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[CombineResponse](t, rec)
	assert.Equal(t, "_wA=", out.Secret)
	assert.Equal(t, "base64", out.Encoding)

	rec = doJSON(t, h, http.MethodPost, "/v1/shamir/secret/combine",
		CombineRequest{Shares: resp.Shares[1:], Encoding: "utf-8"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, threshold.KindInvalidEncoding, decodeBody[ErrorResponse](t, rec).Error)
}

func TestCombineForcedBase64(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	resp := split(t, h, SplitRequest{Secret: "plain", Shares: 2, Threshold: 2})
	rec := doJSON(t, h, http.MethodPost, "/v1/shamir/secret/combine",
		CombineRequest{Shares: resp.Shares, Encoding: "base64"})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[CombineResponse](t, rec)
	assert.Equal(t, "cGxhaW4=", out.Secret)
	assert.Equal(t, "base64", out.Encoding)
}

func TestSplitErrors(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	tests := []struct {
		name   string
		body   interface{}
		status int
		kind   string
	}{
		{"malformed json", `{"secret":`, http.StatusBadRequest, KindInvalidRequest},
		{"trailing data", `{"secret":"a","shares":2,"threshold":2} {}`, http.StatusBadRequest, KindInvalidRequest},
		{"threshold too low", SplitRequest{Secret: "a", Shares: 3, Threshold: 1}, http.StatusBadRequest, threshold.KindInvalidParameters},
		{"threshold above shares", SplitRequest{Secret: "a", Shares: 2, Threshold: 3}, http.StatusBadRequest, threshold.KindInvalidParameters},
		{"too many shares", SplitRequest{Secret: "a", Shares: 256, Threshold: 2}, http.StatusBadRequest, threshold.KindInvalidParameters},
		{"secret too large", SplitRequest{Secret: strings.Repeat("a", 65), Shares: 3, Threshold: 2}, http.StatusRequestEntityTooLarge, threshold.KindSecretTooLarge},
		{"unknown scheme", SplitRequest{Secret: "a", Shares: 3, Threshold: 2, Scheme: "p9999"}, http.StatusBadRequest, threshold.KindUnknownScheme},
		{"invalid scheme name", SplitRequest{Secret: "a", Shares: 3, Threshold: 2, Scheme: "P521!"}, http.StatusBadRequest, threshold.KindUnknownScheme},
		{"bad encoding", SplitRequest{Secret: "a", Shares: 3, Threshold: 2, Encoding: "latin1"}, http.StatusBadRequest, threshold.KindInvalidEncoding},
		{"bad base64", SplitRequest{Secret: "***", Shares: 3, Threshold: 2, Encoding: "base64"}, http.StatusBadRequest, threshold.KindInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/v1/shamir/secret/split", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.kind, resp.Error)
			assert.Equal(t, tt.status, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCombineErrors(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	p521 := split(t, h, SplitRequest{Secret: "abc", Shares: 3, Threshold: 2})
	gf := split(t, h, SplitRequest{Secret: "abc", Shares: 3, Threshold: 2, Scheme: "gf256"})

	tests := []struct {
		name   string
		shares []string
		kind   string
	}{
		{"no shares", nil, threshold.KindInsufficientShares},
		{"one share", p521.Shares[:1], threshold.KindInsufficientShares},
		{"duplicate", []string{p521.Shares[0], p521.Shares[0]}, threshold.KindDuplicateShare},
		{"garbage", []string{"nope", "still-nope"}, threshold.KindMalformedShare},
		{"invalid characters", []string{"sss:p521:1:a b", p521.Shares[1]}, threshold.KindMalformedShare},
		{"mixed schemes", []string{p521.Shares[0], gf.Shares[1]}, threshold.KindMalformedShare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/v1/shamir/secret/combine", CombineRequest{Shares: tt.shares})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	h := newTestServer(t, func(c *Config) { c.MaxBodyBytes = 64 }).Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/shamir/secret/split",
		SplitRequest{Secret: strings.Repeat("a", 100), Shares: 3, Threshold: 2})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, KindRequestTooLarge, decodeBody[ErrorResponse](t, rec).Error)
}

func TestUnsupportedContentType(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/shamir/secret/split", strings.NewReader("secret=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestListSchemes(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[ListSchemesResponse](t, rec)
	assert.Equal(t, "p521", resp.Default)
	require.Len(t, resp.Schemes, 5)
	assert.Equal(t, "p521", resp.Schemes[0].Name)
	assert.Equal(t, 64, resp.Schemes[0].MaxSecretBytes)
	assert.True(t, resp.Schemes[0].Default)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)

	for _, path := range []string{"/health/live", "/health/ready", "/health/startup"} {
		rec := doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindNotFound, decodeBody[ErrorResponse](t, rec).Error)

	rec = doJSON(t, h, http.MethodGet, "/v1/shamir/secret/split", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuthentication(t *testing.T) {
	keys := auth.NewAPIKeyAuthenticator(nil)
	keys.AddKey("s3cret-key", &auth.Identity{Subject: "ops"})
	h := newTestServer(t, func(c *Config) { c.Authenticator = keys }).Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, KindUnauthorized, decodeBody[ErrorResponse](t, rec).Error)

	rec = doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil, "X-API-Key", "s3cret-key")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/shamir/schemes", nil, "Authorization", "Bearer s3cret-key")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Probes stay public.
	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
