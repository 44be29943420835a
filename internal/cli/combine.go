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
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"github.com/jeremyhahn/go-databox/pkg/validation"
	"github.com/spf13/cobra"
)

func newCombineCmd(cfg *Config) *cobra.Command {
	var (
		file     string
		encoding string
	)

	cmd := &cobra.Command{
		Use:   "combine [share...]",
		Short: "Recover a secret from shares",
		Long: `Recover a secret from at least threshold shares of one split.

Shares are taken from the arguments, from --file ("-" for stdin), or from
stdin, one per line. Blank lines are ignored. The scheme is read from
the shares themselves.

Without --encoding the secret is printed as text when it is valid UTF-8
and as URL-safe base64 otherwise. Fewer shares than the threshold either
fail to decode or yield a wrong secret.`,
		Example: `  databox combine sss:p521:1:... sss:p521:3:...
  databox split -t 2 -n 3 --secret hello | databox combine`,
		RunE: func(cmd *cobra.Command, args []string) error {
			shares := args
			if len(shares) == 0 {
				var err error
				if shares, err = readShares(cmd, file); err != nil {
					return err
				}
			}
			return runCombine(cmd, cfg, validation.TrimShares(shares), encoding)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `file with one share per line ("-" for stdin)`)
	cmd.Flags().StringVar(&encoding, "encoding", "", "secret output encoding (utf-8, base64)")

	return cmd
}

func runCombine(cmd *cobra.Command, cfg *Config, shares []string, encoding string) error {
	var enc threshold.Encoding
	if encoding != "" {
		var err error
		if enc, err = threshold.ParseEncoding(encoding); err != nil {
			return err
		}
	}
	if err := validation.ValidateShares(shares); err != nil {
		return fmt.Errorf("%w: %w", threshold.ErrMalformedShare, err)
	}

	service, err := cfg.newService(cmd.Context(), cfg.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer service.Close()

	printVerbose(cmd, cfg, "Combining %d shares", len(shares))

	result, err := service.Combine(cmd.Context(), shares)
	if err != nil {
		return err
	}
	defer secure.Wipe(result.Secret)

	out, used, err := threshold.EncodeOutput(result.Secret, enc)
	if err != nil {
		return err
	}
	return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSecret(out, used, result.Scheme)
}

// readShares reads one share per line from file, or stdin when file is
// empty or "-".
func readShares(cmd *cobra.Command, file string) ([]string, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open share file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var shares []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), validation.MaxShareLength+1)
	for scanner.Scan() {
		shares = append(shares, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shares: %w", err)
	}
	return shares, nil
}
