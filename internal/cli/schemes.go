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
	"github.com/spf13/cobra"
)

func newSchemesCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List the available sharing schemes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := cfg.newService(cmd.Context(), cfg.Logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer service.Close()

			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSchemes(service.Schemes())
		},
	}
}
