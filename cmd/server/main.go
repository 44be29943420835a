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

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jeremyhahn/go-databox/internal/config"
	"github.com/jeremyhahn/go-databox/internal/server"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults and DATABOX_* environment when empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("databox server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("DATABOX_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	slog.Info("Starting databox server",
		"config", *configPath,
		"version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup signal handler for graceful shutdown
	ctx, stop := server.SetupSignalHandler()
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
