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
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/adapters/auth"
	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/metrics"
	"github.com/jeremyhahn/go-databox/pkg/ratelimit"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Server wraps the gRPC server with lifecycle management
type Server struct {
	service         *Service
	grpcSrv         *grpc.Server
	addr            string
	port            int
	tlsConfig       *tls.Config
	authenticator   auth.Authenticator
	logger          logger.Logger
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
}

// ServerConfig contains configuration for the gRPC server
type ServerConfig struct {
	Host string
	Port int

	// Service performs split and combine operations (required)
	Service *threshold.Service

	TLSConfig     *tls.Config
	Authenticator auth.Authenticator
	RateLimiter   *ratelimit.Limiter
	Logger        logger.Logger

	// RequestTimeout bounds each call unless the client sets a shorter
	// deadline.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds GracefulStop before the server is forced down
	// (default: 30s)
	ShutdownTimeout time.Duration

	EnableLogging  bool
	EnableRecovery bool
}

// NewServer creates a new gRPC server
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("sharing service is required")
	}

	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = auth.NewNoOpAuthenticator()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{
			Level: logger.LevelInfo,
		})
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}

	server := &Server{
		service:         NewService(cfg.Service),
		addr:            net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		port:            cfg.Port,
		tlsConfig:       cfg.TLSConfig,
		authenticator:   authenticator,
		logger:          log,
		requestTimeout:  cfg.RequestTimeout,
		shutdownTimeout: shutdownTimeout,
	}

	// Correlation first so every later interceptor logs with the ID
	interceptors := []grpc.UnaryServerInterceptor{
		server.correlationUnaryInterceptor,
		metrics.GRPCUnaryServerInterceptor(),
	}
	if cfg.RateLimiter != nil {
		interceptors = append(interceptors, ratelimit.UnaryServerInterceptor(cfg.RateLimiter))
	}
	interceptors = append(interceptors, server.authenticationUnaryInterceptor)
	if cfg.EnableLogging {
		interceptors = append(interceptors, server.loggingUnaryInterceptor)
	}
	if cfg.EnableRecovery {
		interceptors = append(interceptors, server.recoveryUnaryInterceptor)
	}
	interceptors = append(interceptors, server.timeoutUnaryInterceptor, errorHandlingUnaryInterceptor)

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(cfg.TLSConfig)))
	}

	server.grpcSrv = grpc.NewServer(opts...)
	RegisterSecretSharingServer(server.grpcSrv, server.service)

	return server, nil
}

// Start listens on the configured address and serves until Stop. Port 0
// picks an ephemeral port.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener.
func (s *Server) Serve(listener net.Listener) error {
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}

	s.logger.Info("Starting gRPC server",
		logger.String("addr", listener.Addr().String()),
		logger.Bool("tls", s.tlsConfig != nil),
		logger.String("auth", s.authenticator.Name()))

	if err := s.grpcSrv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the gRPC server, forcing it down when ctx ends or
// the shutdown timeout passes.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping gRPC server")

	stopped := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
		return nil
	case <-ctx.Done():
	case <-time.After(s.shutdownTimeout):
	}

	s.logger.Warn("Forcing gRPC server stop after timeout")
	s.grpcSrv.Stop()
	<-stopped
	return nil
}

// Port returns the port the server is listening on
func (s *Server) Port() int {
	return s.port
}

// GRPCServer returns the underlying server, for registering extra services
// such as reflection or health.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcSrv
}

// Interceptors

// authenticationUnaryInterceptor authenticates unary RPC calls
func (s *Server) authenticationUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}

	identity, err := s.authenticator.AuthenticateGRPC(ctx, md)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("Authentication failed",
			logger.String("method", info.FullMethod),
			logger.String("authenticator", s.authenticator.Name()),
			logger.Error(err))
		return nil, status.Error(codes.Unauthenticated, "authentication failed")
	}

	return handler(auth.WithIdentity(ctx, identity), req)
}

// loggingUnaryInterceptor logs unary RPC calls. Messages are never logged.
func (s *Server) loggingUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	log := logger.FromContext(ctx, s.logger)

	subject := "anonymous"
	if identity := auth.GetIdentity(ctx); identity != nil {
		subject = identity.Subject
	}

	log.Debug("RPC started",
		logger.String("method", info.FullMethod),
		logger.String("subject", subject))

	resp, err := handler(ctx, req)

	fields := []logger.Field{
		logger.String("method", info.FullMethod),
		logger.Duration("duration", time.Since(start)),
		logger.String("code", status.Code(err).String()),
		logger.String("subject", subject),
	}
	if status.Code(err) == codes.Internal {
		log.Error("RPC completed", fields...)
	} else {
		log.Info("RPC completed", fields...)
	}

	return resp, err
}

// recoveryUnaryInterceptor recovers from panics in unary RPC handlers
func (s *Server) recoveryUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx, s.logger).Error("Recovered from panic",
				logger.String("method", info.FullMethod),
				logger.Any("panic", r))
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()

	return handler(ctx, req)
}

// timeoutUnaryInterceptor applies the configured request timeout.
func (s *Server) timeoutUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	if s.requestTimeout <= 0 {
		return handler(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	return handler(ctx, req)
}

// errorHandlingUnaryInterceptor normalizes error responses
func errorHandlingUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		err = toStatus(err)
	}
	return resp, err
}
