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
	"os"
	"os/signal"
	"syscall"

	"github.com/jeremyhahn/go-databox/internal/config"
	"github.com/jeremyhahn/go-databox/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the databox server",
		Long: `Run the REST, gRPC and HTTP/3 transports enabled in the configuration.

SIGINT and SIGTERM shut the server down gracefully. SIGHUP reloads the
configuration file; only the log level is applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg, err := cfg.Load()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg.ConfigFile, serverCfg)
		},
	}
}

// runServer runs until a shutdown signal arrives or a transport fails.
func runServer(parent context.Context, configFile string, cfg *config.Config) error {
	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				reloadServer(srv, configFile)
			}
		}
	}()

	return srv.Run(ctx)
}

func reloadServer(srv *server.Server, configFile string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to reload configuration: %v\n", err)
		return
	}
	if err := srv.Reload(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
