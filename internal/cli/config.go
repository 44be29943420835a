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

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-databox/internal/config"
	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/crypto/rand"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// OutputFormat controls output formatting (text, json, yaml)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
	}
}

// Load reads the server configuration the CLI shares with databox serve.
func (c *Config) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger returns a debug logger on w in verbose mode and a discarding
// logger otherwise.
func (c *Config) Logger(w io.Writer) logger.Logger {
	if !c.Verbose {
		return logger.Discard()
	}
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  logger.LevelDebug,
		Output: w,
	})
}

// localService is a sharing service for in-process use together with the
// random source it owns.
type localService struct {
	*threshold.Service
	random rand.Resolver
}

// Close releases the random source.
func (s *localService) Close() error {
	return s.random.Close()
}

// newService builds a sharing service from the sharing section of the
// configuration, without starting any server.
func (c *Config) newService(ctx context.Context, log logger.Logger) (*localService, error) {
	cfg, err := c.Load()
	if err != nil {
		return nil, err
	}

	randCfg, err := cfg.Sharing.RNG.RandConfig()
	if err != nil {
		return nil, err
	}
	resolver, err := rand.NewResolver(randCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize random source: %w", err)
	}

	svcCfg := cfg.Sharing.ServiceConfig()
	svcCfg.Random = resolver
	svcCfg.Logger = log

	service, err := threshold.NewService(svcCfg)
	if err != nil {
		_ = resolver.Close()
		return nil, err
	}
	if err := service.SelfTest(ctx); err != nil {
		_ = resolver.Close()
		return nil, fmt.Errorf("self-test failed: %w", err)
	}
	return &localService{Service: service, random: resolver}, nil
}
