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

// Package quic serves the REST API over HTTP/3.
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/quic-go/quic-go/http3"
)

// DefaultAddr is used when no address is configured.
const DefaultAddr = ":8443"

// Server represents a QUIC/HTTP3 server
type Server struct {
	addr      string
	tlsConfig *tls.Config
	logger    logger.Logger
	server    *http3.Server
	conn      net.PacketConn
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// Config holds the QUIC server configuration
type Config struct {
	Addr string

	// Handler is the routed REST handler, typically rest.Server.Handler().
	Handler http.Handler

	// TLSConfig is required; QUIC has no plaintext mode.
	TLSConfig *tls.Config

	Logger logger.Logger
}

// NewServer creates a new QUIC/HTTP3 server
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.TLSConfig == nil {
		return nil, fmt.Errorf("TLS configuration is required for QUIC")
	}

	addr := config.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	log := config.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{
			Level: logger.LevelInfo,
		})
	}

	tlsConfig := http3.ConfigureTLSConfig(config.TLSConfig.Clone())
	if tlsConfig.MinVersion < tls.VersionTLS13 {
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	s := &Server{
		addr:      addr,
		tlsConfig: tlsConfig,
		logger:    log,
	}
	s.server = &http3.Server{
		Addr:      addr,
		Handler:   config.Handler,
		TLSConfig: tlsConfig,
	}
	if slogAdapter, ok := log.(*logger.SlogAdapter); ok {
		s.server.Logger = slogAdapter.Slog()
	}

	return s, nil
}

// Start listens on the configured UDP address and serves in the
// background.
func (s *Server) Start() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.Serve(conn)
	return nil
}

// Serve serves HTTP/3 on conn in the background. The server owns conn.
func (s *Server) Serve(conn net.PacketConn) {
	s.mu.Lock()
	s.conn = conn
	s.addr = conn.LocalAddr().String()
	s.mu.Unlock()

	s.logger.Info("Starting QUIC/HTTP3 server", logger.String("addr", s.addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(conn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("QUIC server error", logger.Error(err))
		}
	}()
}

// Stop gracefully stops the QUIC server, closing remaining connections
// when ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping QUIC server")

	err := s.server.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("Graceful QUIC shutdown incomplete", logger.Error(err))
		if cerr := s.server.Close(); cerr != nil {
			return fmt.Errorf("failed to close QUIC server: %w", cerr)
		}
	}

	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("QUIC server stopped")
	return nil
}

// AltSvcMiddleware advertises the HTTP/3 endpoint on TCP responses.
func (s *Server) AltSvcMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor < 3 {
			if err := s.server.SetQUICHeaders(w.Header()); err != nil {
				s.logger.Debug("Alt-Svc header not set", logger.Error(err))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Addr returns the server address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
