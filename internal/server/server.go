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

// Package server runs the REST, gRPC and HTTP/3 transports and the metrics
// endpoint around a single secret sharing service.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-databox/internal/config"
	grpcinternal "github.com/jeremyhahn/go-databox/internal/grpc"
	"github.com/jeremyhahn/go-databox/internal/quic"
	"github.com/jeremyhahn/go-databox/internal/rest"
	"github.com/jeremyhahn/go-databox/pkg/adapters/auth"
	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/crypto/rand"
	"github.com/jeremyhahn/go-databox/pkg/health"
	"github.com/jeremyhahn/go-databox/pkg/metrics"
	"github.com/jeremyhahn/go-databox/pkg/ratelimit"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
)

// Server represents the unified databox server that runs all protocols
type Server struct {
	config   *config.Config
	version  string
	mu       sync.RWMutex
	logger   *logger.SlogAdapter
	logLevel *slog.LevelVar

	random        rand.Resolver
	service       *threshold.Service
	authenticator auth.Authenticator
	rateLimiter   *ratelimit.Limiter
	tlsConfig     *tls.Config
	healthChecker *health.Checker

	// Protocol servers
	restServer    *rest.Server
	grpcServer    *grpcinternal.Server
	quicServer    *quic.Server
	metricsServer *http.Server

	restAddr    net.Addr
	grpcAddr    net.Addr
	quicAddr    string
	metricsAddr net.Addr

	metricsCollector *metrics.ResourceCollector

	// Lifecycle
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	errCh        chan error
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New builds every enabled component from cfg. cfg is expected to have
// passed config.Validate; listeners are opened by Start.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	levelVar := new(slog.LevelVar)
	logCfg, err := cfg.Logging.LoggerConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	logCfg.LevelVar = levelVar
	log := logger.NewSlogAdapter(logCfg)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		version:    BuildVersion(),
		logger:     log,
		logLevel:   levelVar,
		ctx:        ctx,
		cancel:     cancel,
		errCh:      make(chan error, 4),
		shutdownCh: make(chan struct{}),
	}

	if err := s.initialize(); err != nil {
		cancel()
		s.closeResources()
		return nil, err
	}
	return s, nil
}

func (s *Server) initialize() error {
	if err := s.initializeRandom(); err != nil {
		return fmt.Errorf("failed to initialize random source: %w", err)
	}
	if err := s.initializeService(); err != nil {
		return fmt.Errorf("failed to initialize sharing service: %w", err)
	}
	if err := s.initializeSecurity(); err != nil {
		return err
	}
	s.initializeHealth()
	return s.initializeTransports()
}

// initializeRandom opens the configured entropy source and self-tests it.
func (s *Server) initializeRandom() error {
	randCfg, err := s.config.Sharing.RNG.RandConfig()
	if err != nil {
		return err
	}
	resolver, err := rand.NewResolver(randCfg)
	if err != nil {
		return err
	}
	s.random = resolver

	if err := rand.SelfTest(resolver); err != nil {
		return err
	}
	s.logger.Info("Random source initialized", logger.String("mode", string(resolver.Mode())))
	return nil
}

func (s *Server) initializeService() error {
	svcCfg := s.config.Sharing.ServiceConfig()
	svcCfg.Random = s.random
	svcCfg.Logger = s.component("sharing")

	service, err := threshold.NewService(svcCfg)
	if err != nil {
		return err
	}
	if err := service.SelfTest(s.ctx); err != nil {
		return fmt.Errorf("self-test failed: %w", err)
	}
	s.service = service

	s.logger.Info("Sharing service initialized",
		logger.String("default_scheme", service.DefaultScheme()),
		logger.Int("schemes", len(service.Schemes())))
	return nil
}

func (s *Server) initializeSecurity() error {
	authenticator, err := s.config.Auth.CreateAuthenticator()
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	s.authenticator = authenticator

	tlsConfig, err := s.config.TLS.LoadTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to load TLS configuration: %w", err)
	}
	s.tlsConfig = tlsConfig

	s.rateLimiter = ratelimit.New(&ratelimit.Config{
		Enabled:           s.config.RateLimit.Enabled,
		RequestsPerMinute: s.config.RateLimit.RequestsPerMinute,
		Burst:             s.config.RateLimit.Burst,
	})

	s.logger.Info("Security initialized",
		logger.String("auth", authenticator.Name()),
		logger.Bool("tls", tlsConfig != nil),
		logger.Bool("rate_limit", s.rateLimiter.IsEnabled()))
	return nil
}

// initializeHealth creates and configures the health checker.
func (s *Server) initializeHealth() {
	s.healthChecker = health.NewChecker()
	if s.config.Health.CheckTimeout > 0 {
		s.healthChecker.SetCheckTimeout(s.config.Health.CheckTimeout)
	}

	s.healthChecker.RegisterCheck("entropy", health.EntropyCheck(s.random))
	s.healthChecker.RegisterCheck("selftest", health.SelfTestCheck("selftest", s.service.SelfTest))

	s.logger.Info("Health checker initialized",
		logger.Int("checks", len(s.healthChecker.GetAllChecks())))
}

// initializeTransports builds the protocol servers. The HTTP/3 server
// serves the REST router, which in turn advertises it through Alt-Svc.
func (s *Server) initializeTransports() error {
	cfg := s.config
	protocols := cfg.Protocols

	var restHandler http.Handler
	var middleware []func(http.Handler) http.Handler

	if protocols.QUIC {
		if s.tlsConfig == nil {
			return fmt.Errorf("QUIC requires TLS to be enabled")
		}
		quicServer, err := quic.NewServer(&quic.Config{
			Addr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.QUICPort)),
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				restHandler.ServeHTTP(w, r)
			}),
			TLSConfig: s.tlsConfig,
			Logger:    s.component("quic"),
		})
		if err != nil {
			return fmt.Errorf("failed to create QUIC server: %w", err)
		}
		s.quicServer = quicServer
		middleware = append(middleware, quicServer.AltSvcMiddleware)
	}

	if protocols.REST || protocols.QUIC {
		restCfg := &rest.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.RESTPort,
			Service:        s.service,
			Version:        s.version,
			TLSConfig:      s.tlsConfig,
			Authenticator:  s.authenticator,
			RateLimiter:    s.rateLimiter,
			Logger:         s.component("rest"),
			RequestTimeout: cfg.Sharing.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			Middleware:     middleware,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
		}
		if cfg.Health.Enabled {
			restCfg.HealthChecker = s.healthChecker
		}
		if cfg.CORS.Enabled {
			restCfg.CORSOrigins = cfg.CORS.AllowedOrigins
			if restCfg.CORSOrigins == nil {
				restCfg.CORSOrigins = []string{}
			}
		}
		if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
			restCfg.MetricsPath = cfg.Metrics.Path
			restCfg.MetricsHandler = metrics.Handler()
		}

		restServer, err := rest.NewServer(restCfg)
		if err != nil {
			return fmt.Errorf("failed to create REST server: %w", err)
		}
		s.restServer = restServer
		restHandler = restServer.Handler()
	}

	if protocols.GRPC {
		grpcServer, err := grpcinternal.NewServer(&grpcinternal.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.GRPCPort,
			Service:         s.service,
			TLSConfig:       s.tlsConfig,
			Authenticator:   s.authenticator,
			RateLimiter:     s.rateLimiter,
			Logger:          s.component("grpc"),
			RequestTimeout:  cfg.Sharing.RequestTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			EnableLogging:   true,
			EnableRecovery:  true,
		})
		if err != nil {
			return fmt.Errorf("failed to create gRPC server: %w", err)
		}
		s.grpcServer = grpcServer
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port != 0 {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Metrics.Port)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return nil
}

// component returns a logger tagged with the component name.
func (s *Server) component(name string) logger.Logger {
	return s.logger.With(logger.String("component", name))
}

// Start opens every listener and serves in the background. A listener that
// cannot be opened stops everything already started.
func (s *Server) Start() error {
	s.logger.Info("Starting databox server", logger.String("version", s.version))

	if s.config.Metrics.Enabled {
		metrics.Enable()
		interval := s.config.Metrics.CollectInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		s.metricsCollector = metrics.StartResourceCollector(s.ctx, interval)
	} else {
		metrics.Disable()
	}

	if err := s.startAll(); err != nil {
		_ = s.Shutdown()
		return err
	}

	s.healthChecker.MarkStarted()
	s.logger.Info("All servers started successfully")
	return nil
}

func (s *Server) startAll() error {
	cfg := s.config

	if cfg.Protocols.REST {
		ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.RESTPort)))
		if err != nil {
			return fmt.Errorf("failed to listen for REST: %w", err)
		}
		s.setAddr(&s.restAddr, ln.Addr())
		s.serve("rest", func() error { return s.restServer.Serve(ln) })
	}

	if s.grpcServer != nil {
		ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)))
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		s.setAddr(&s.grpcAddr, ln.Addr())
		s.serve("grpc", func() error { return s.grpcServer.Serve(ln) })
	}

	if s.quicServer != nil {
		conn, err := net.ListenPacket("udp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.QUICPort)))
		if err != nil {
			return fmt.Errorf("failed to listen for QUIC: %w", err)
		}
		s.quicServer.Serve(conn)
		s.mu.Lock()
		s.quicAddr = s.quicServer.Addr()
		s.mu.Unlock()
	}

	if s.metricsServer != nil {
		ln, err := net.Listen("tcp", s.metricsServer.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		s.setAddr(&s.metricsAddr, ln.Addr())
		s.logger.Info("Starting metrics server",
			logger.String("addr", ln.Addr().String()),
			logger.String("path", cfg.Metrics.Path))
		s.serve("metrics", func() error {
			if err := s.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	return nil
}

func (s *Server) setAddr(dst *net.Addr, addr net.Addr) {
	s.mu.Lock()
	*dst = addr
	s.mu.Unlock()
}

// serve runs fn in the background and reports its failure on Errors.
func (s *Server) serve(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.logger.Error("Server error", logger.String("component", name), logger.Error(err))
			select {
			case s.errCh <- fmt.Errorf("%s: %w", name, err):
			default:
			}
		}
	}()
}

// Errors reports transport failures after Start.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Run starts the server and blocks until ctx is cancelled or a transport
// fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Received shutdown signal")
	case runErr = <-s.errCh:
	}

	if err := s.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully shuts down all servers. It is safe to call more than
// once.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *Server) shutdown() error {
	s.logger.Info("Shutting down server...")
	s.healthChecker.MarkNotStarted()

	if s.metricsCollector != nil {
		s.metricsCollector.Stop()
	}
	s.cancel()

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if s.restServer != nil && s.restAddr != nil {
		if err := s.restServer.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.grpcServer != nil && s.grpcAddr != nil {
		if err := s.grpcServer.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.quicServer != nil && s.quicAddr != "" {
		if err := s.quicServer.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.metricsServer != nil && s.metricsAddr != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("All servers stopped")
	case <-shutdownCtx.Done():
		s.logger.Warn("Shutdown timeout exceeded, forcing stop")
	}

	s.closeResources()
	close(s.shutdownCh)
	s.logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases the rate limiter and the random source.
func (s *Server) closeResources() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.random != nil {
		if err := s.random.Close(); err != nil {
			s.logger.Error("Error closing random source", logger.Error(err))
		}
	}
}

// WaitForShutdown blocks until the server is shut down
func (s *Server) WaitForShutdown() {
	<-s.shutdownCh
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Service returns the sharing service.
func (s *Server) Service() *threshold.Service {
	return s.service
}

// HealthChecker returns the health checker.
func (s *Server) HealthChecker() *health.Checker {
	return s.healthChecker
}

// RESTAddr returns the REST listener address, or nil before Start.
func (s *Server) RESTAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restAddr
}

// GRPCAddr returns the gRPC listener address, or nil before Start.
func (s *Server) GRPCAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grpcAddr
}

// QUICAddr returns the HTTP/3 listener address, or "" before Start.
func (s *Server) QUICAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quicAddr
}

// MetricsAddr returns the dedicated metrics listener address, if any.
func (s *Server) MetricsAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metricsAddr
}

// BuildVersion retrieves the version from build information
func BuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
