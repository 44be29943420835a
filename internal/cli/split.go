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
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type splitOptions struct {
	threshold  int
	shares     int
	scheme     string
	secret     string
	secretFile string
	encoding   string
}

func newSplitCmd(cfg *Config) *cobra.Command {
	opts := &splitOptions{}

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a secret into shares",
		Long: `Split a secret into N shares, any T of which recover it.

The secret is read from --secret, from --secret-file ("-" for stdin), or
from stdin. On a terminal it is prompted for without echo. Piped input has
a single trailing newline removed; --secret-file content is used as is.

Passing the secret with --secret exposes it in the process list.`,
		Example: `  databox split -t 2 -n 3
  databox split -t 3 -n 5 --scheme p1279 --secret-file key.bin
  echo -n 'AAEC' | databox split -t 2 -n 2 --encoding base64`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, cfg, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.threshold, "threshold", "t", 0, "shares required to recover the secret")
	cmd.Flags().IntVarP(&opts.shares, "shares", "n", 0, "number of shares to create")
	cmd.Flags().StringVar(&opts.scheme, "scheme", "", "sharing scheme (default from configuration)")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "secret value")
	cmd.Flags().StringVar(&opts.secretFile, "secret-file", "", `file containing the secret ("-" for stdin)`)
	cmd.Flags().StringVar(&opts.encoding, "encoding", "", "secret input encoding (utf-8, base64)")
	_ = cmd.MarkFlagRequired("threshold")
	_ = cmd.MarkFlagRequired("shares")
	cmd.MarkFlagsMutuallyExclusive("secret", "secret-file")

	return cmd
}

func runSplit(cmd *cobra.Command, cfg *Config, opts *splitOptions) error {
	raw, err := readSecret(cmd, opts)
	if err != nil {
		return err
	}
	buf := secure.FromSlice(raw)
	defer buf.Destroy()

	secret := buf.Bytes()
	if opts.secretFile == "" || cmd.Flags().Changed("encoding") {
		enc, err := threshold.ParseEncoding(opts.encoding)
		if err != nil {
			return err
		}
		decoded, err := threshold.DecodeInputBytes(buf.Bytes(), enc)
		if err != nil {
			return err
		}
		decodedBuf := secure.FromSlice(decoded)
		defer decodedBuf.Destroy()
		secret = decodedBuf.Bytes()
	}

	service, err := cfg.newService(cmd.Context(), cfg.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer service.Close()

	printVerbose(cmd, cfg, "Splitting %d byte secret into %d shares (threshold %d)",
		len(secret), opts.shares, opts.threshold)

	result, err := service.Split(cmd.Context(), threshold.SplitRequest{
		Secret:    secret,
		Threshold: opts.threshold,
		Shares:    opts.shares,
		Scheme:    opts.scheme,
	})
	if err != nil {
		return err
	}

	return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintShares(result)
}

// readSecret returns the raw secret input. The caller owns and wipes it.
func readSecret(cmd *cobra.Command, opts *splitOptions) ([]byte, error) {
	switch {
	case cmd.Flags().Changed("secret"):
		return []byte(opts.secret), nil
	case opts.secretFile == "-":
		return io.ReadAll(cmd.InOrStdin())
	case opts.secretFile != "":
		data, err := os.ReadFile(opts.secretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret file: %w", err)
		}
		return data, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Secret: ")
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, fmt.Errorf("failed to read secret: %w", err)
		}
		return secret, nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return trimNewline(data), nil
}

func trimNewline(data []byte) []byte {
	if bytes.HasSuffix(data, []byte("\r\n")) {
		return data[:len(data)-2]
	}
	return bytes.TrimSuffix(data, []byte("\n"))
}
