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

package server

import (
	"fmt"

	"github.com/jeremyhahn/go-databox/internal/config"
	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
)

// Reload applies the parts of cfg that can change without a restart.
// Only the log level is reloaded; listeners, TLS, authentication and
// sharing limits require a restart.
func (s *Server) Reload(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to reload logging configuration: %w", err)
	}

	if cfg.Logging.Level != s.config.Logging.Level {
		s.logger.Info("Updating log level",
			logger.String("old_level", s.config.Logging.Level),
			logger.String("new_level", cfg.Logging.Level))
		s.logLevel.Set(level.SlogLevel())
		s.config.Logging.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != s.config.Logging.Format {
		s.logger.Warn("Log format changes require a restart",
			logger.String("format", s.config.Logging.Format))
	}

	s.logger.Info("Server configuration reloaded")
	return nil
}
