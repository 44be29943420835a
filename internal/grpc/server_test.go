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

package grpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/adapters/auth"
	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/correlation"
	"github.com/jeremyhahn/go-databox/pkg/ratelimit"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

func startTestServer(t *testing.T, mutate func(*ServerConfig)) *SecretSharingClient {
	t.Helper()

	svc, err := threshold.NewService(&threshold.Config{Logger: logger.Discard()})
	require.NoError(t, err)

	cfg := &ServerConfig{
		Service:        svc,
		Logger:         logger.Discard(),
		EnableLogging:  true,
		EnableRecovery: true,
	}
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewSecretSharingClient(conn)
}

func TestSplitCombine(t *testing.T) {
	client := startTestServer(t, nil)
	ctx := context.Background()

	for _, scheme := range threshold.AllSchemes() {
		t.Run(scheme, func(t *testing.T) {
			secret := []byte{0x00, 0xff, 'd', 'a', 't', 'a', 0x00}

			split, err := client.Split(ctx, &SplitRequest{
				Secret:    append([]byte(nil), secret...),
				Threshold: 3,
				Shares:    5,
				Scheme:    scheme,
			})
			require.NoError(t, err)
			assert.Len(t, split.Shares, 5)
			assert.EqualValues(t, 5, split.Count)
			assert.EqualValues(t, 3, split.Threshold)
			assert.Equal(t, scheme, split.Scheme)
			assert.EqualValues(t, 1, split.Version)

			combined, err := client.Combine(ctx, &CombineRequest{
				Shares: []string{split.Shares[1], split.Shares[3], split.Shares[4]},
			})
			require.NoError(t, err)
			assert.Equal(t, secret, combined.Secret)
			assert.Equal(t, scheme, combined.Scheme)
		})
	}
}

func TestListSchemes(t *testing.T) {
	client := startTestServer(t, nil)

	resp, err := client.ListSchemes(context.Background(), &ListSchemesRequest{})
	require.NoError(t, err)
	assert.Equal(t, "p521", resp.Default)
	require.Len(t, resp.Schemes, 5)
	assert.Equal(t, "sssa", resp.Schemes[4].Name)
}

func TestErrorCodes(t *testing.T) {
	client := startTestServer(t, nil)
	ctx := context.Background()

	split, err := client.Split(ctx, &SplitRequest{Secret: []byte("abc"), Threshold: 2, Shares: 3})
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"threshold too low", func() error {
			_, err := client.Split(ctx, &SplitRequest{Secret: []byte("a"), Threshold: 1, Shares: 3})
			return err
		}, codes.InvalidArgument},
		{"unknown scheme", func() error {
			_, err := client.Split(ctx, &SplitRequest{Secret: []byte("a"), Threshold: 2, Shares: 3, Scheme: "p7"})
			return err
		}, codes.InvalidArgument},
		{"secret too large", func() error {
			_, err := client.Split(ctx, &SplitRequest{Secret: []byte(strings.Repeat("a", 65)), Threshold: 2, Shares: 3})
			return err
		}, codes.OutOfRange},
		{"one share", func() error {
			_, err := client.Combine(ctx, &CombineRequest{Shares: split.Shares[:1]})
			return err
		}, codes.InvalidArgument},
		{"duplicate shares", func() error {
			_, err := client.Combine(ctx, &CombineRequest{Shares: []string{split.Shares[0], split.Shares[0]}})
			return err
		}, codes.InvalidArgument},
		{"malformed share", func() error {
			_, err := client.Combine(ctx, &CombineRequest{Shares: []string{"sss:p521:0:AA", split.Shares[1]}})
			return err
		}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err), err.Error())
		})
	}
}

func TestAuthentication(t *testing.T) {
	keys := auth.NewAPIKeyAuthenticator(nil)
	keys.AddKey("grpc-key", &auth.Identity{Subject: "svc"})
	client := startTestServer(t, func(c *ServerConfig) { c.Authenticator = keys })

	_, err := client.ListSchemes(context.Background(), &ListSchemesRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "grpc-key")
	_, err = client.ListSchemes(ctx, &ListSchemesRequest{})
	assert.NoError(t, err)

	ctx = metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer grpc-key")
	_, err = client.ListSchemes(ctx, &ListSchemesRequest{})
	assert.NoError(t, err)
}

func TestRateLimiting(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{Enabled: true, RequestsPerMinute: 60, Burst: 1})
	defer limiter.Stop()
	client := startTestServer(t, func(c *ServerConfig) { c.RateLimiter = limiter })

	_, err := client.ListSchemes(context.Background(), &ListSchemesRequest{})
	require.NoError(t, err)

	var header metadata.MD
	_, err = client.ListSchemes(context.Background(), &ListSchemesRequest{}, grpc.Header(&header))
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.NotEmpty(t, header.Get(ratelimit.GRPCRetryAfterKey))
}

func TestCorrelationHeader(t *testing.T) {
	client := startTestServer(t, nil)

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(context.Background(), correlation.GRPCRequestIDKey, "trace-42")
	_, err := client.ListSchemes(ctx, &ListSchemesRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"trace-42"}, header.Get(correlation.GRPCRequestIDKey))
	assert.Equal(t, []string{"trace-42"}, header.Get(correlation.GRPCCorrelationIDKey))

	_, err = client.ListSchemes(context.Background(), &ListSchemesRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	ids := header.Get(correlation.GRPCRequestIDKey)
	require.Len(t, ids, 1)
	assert.True(t, strings.HasPrefix(ids[0], correlation.IDPrefix))
}

func TestRecoveryInterceptor(t *testing.T) {
	srv := &Server{logger: logger.Discard()}
	info := &grpc.UnaryServerInfo{FullMethod: SplitMethod}

	_, err := srv.recoveryUnaryInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			panic("boom")
		})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "boom")
}

func TestToStatus(t *testing.T) {
	assert.NoError(t, toStatus(nil))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.InvalidArgument, status.Code(toStatus(threshold.ErrDecode)))

	err := toStatus(assert.AnError)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), assert.AnError.Error())

	already := status.Error(codes.NotFound, "gone")
	assert.Equal(t, already, toStatus(already))
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	_, err = NewServer(&ServerConfig{})
	assert.Error(t, err)
}
