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
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jeremyhahn/go-databox/pkg/adapters/auth"
	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/metrics"
	"github.com/jeremyhahn/go-databox/pkg/ratelimit"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
)

// Server represents the REST API server.
type Server struct {
	server         *http.Server
	handler        http.Handler
	handlers       *HandlerContext
	port           int
	tlsConfig      *tls.Config
	authenticator  auth.Authenticator
	rateLimiter    *ratelimit.Limiter
	logger         logger.Logger
	corsOrigins    []string
	requestTimeout time.Duration
	metricsPath    string
	metricsHandler http.Handler
	middleware     []func(http.Handler) http.Handler
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the interface to bind (default: all interfaces)
	Host string

	// Port is the HTTP port to listen on (default: 8080)
	Port int

	// Service performs split and combine operations (required)
	Service *threshold.Service

	// Version is reported by /health and in split responses
	Version string

	// TLSConfig is the TLS configuration for HTTPS (optional)
	TLSConfig *tls.Config

	// Authenticator is the authentication adapter (optional, defaults to NoOp)
	Authenticator auth.Authenticator

	// RateLimiter throttles /v1 requests per client (optional)
	RateLimiter *ratelimit.Limiter

	// HealthChecker backs the /health probes (optional)
	HealthChecker HealthChecker

	// Logger is the logging adapter (optional)
	Logger logger.Logger

	// CORSOrigins lists allowed origins. Nil disables CORS headers.
	CORSOrigins []string

	// RequestTimeout bounds each /v1 request (default: 10s)
	RequestTimeout time.Duration

	// MaxBodyBytes caps request bodies (default: 1 MiB)
	MaxBodyBytes int64

	// MetricsPath mounts MetricsHandler on this server when both are set
	MetricsPath    string
	MetricsHandler http.Handler

	// Middleware is appended to the global chain, after CORS
	Middleware []func(http.Handler) http.Handler

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("sharing service is required")
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
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

	handlers := NewHandlerContext(cfg.Service, cfg.Version, cfg.MaxBodyBytes)
	if cfg.HealthChecker != nil {
		handlers.SetHealthChecker(cfg.HealthChecker)
	}

	server := &Server{
		handlers:       handlers,
		port:           cfg.Port,
		tlsConfig:      cfg.TLSConfig,
		authenticator:  authenticator,
		rateLimiter:    cfg.RateLimiter,
		logger:         log,
		corsOrigins:    cfg.CORSOrigins,
		requestTimeout: cfg.RequestTimeout,
		metricsPath:    cfg.MetricsPath,
		metricsHandler: cfg.MetricsHandler,
		middleware:     cfg.Middleware,
	}
	server.handler = server.setupRouter()

	server.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           server.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		TLSConfig:         cfg.TLSConfig,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	if s.corsOrigins != nil {
		r.Use(CORSMiddleware(s.corsOrigins))
	}
	r.Use(s.middleware...)

	r.NotFound(NotFoundHandler)
	r.MethodNotAllowed(MethodNotAllowedHandler)

	// Health probes (no auth required)
	r.Get("/health", s.handlers.HealthHandler)
	r.Head("/health", s.handlers.HealthHandler)
	r.Get("/health/live", s.handlers.LivenessHandler)
	r.Get("/health/ready", s.handlers.ReadinessHandler)
	r.Get("/health/startup", s.handlers.StartupHandler)

	if s.metricsPath != "" && s.metricsHandler != nil {
		r.Handle(s.metricsPath, s.metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(requestTimeout(s.requestTimeout))
		if s.rateLimiter != nil {
			r.Use(ratelimit.Middleware(s.rateLimiter))
		}
		r.Use(s.AuthenticationMiddleware())

		r.Get("/shamir/schemes", s.handlers.ListSchemesHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			r.Post("/shamir/secret/split", s.handlers.SplitHandler)
			r.Post("/shamir/secret/combine", s.handlers.CombineHandler)
		})
	})

	return r
}

// requestTimeout bounds the request context. Handlers map the resulting
// deadline error to 504 themselves.
func requestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Handler returns the routed handler, for mounting on another transport
// such as HTTP/3.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. TLS is applied when configured.
func (s *Server) Serve(ln net.Listener) error {
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcp.Port
	}

	var err error
	if s.tlsConfig != nil {
		s.logger.Info("Starting HTTPS server",
			logger.String("addr", ln.Addr().String()),
			logger.String("auth", s.authenticator.Name()))
		err = s.server.ServeTLS(ln, "", "")
	} else {
		s.logger.Info("Starting HTTP server",
			logger.String("addr", ln.Addr().String()),
			logger.String("auth", s.authenticator.Name()))
		err = s.server.Serve(ln)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve REST API: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down REST server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("REST server stopped")
	return nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// SetHealthChecker sets the health checker for the server.
func (s *Server) SetHealthChecker(checker HealthChecker) {
	s.handlers.SetHealthChecker(checker)
}
