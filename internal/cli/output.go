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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

// splitOutput is the structured form of a split result.
type splitOutput struct {
	Shares    []string `json:"shares" yaml:"shares"`
	Threshold int      `json:"threshold" yaml:"threshold"`
	Count     int      `json:"count" yaml:"count"`
	Scheme    string   `json:"scheme" yaml:"scheme"`
	Version   int      `json:"version" yaml:"version"`
}

// PrintShares prints the shares of a split. Text output is one share per
// line so it can be piped straight into combine.
func (p *Printer) PrintShares(result *threshold.SplitResult) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(splitOutput{
			Shares:    result.Shares,
			Threshold: result.Threshold,
			Count:     result.Count,
			Scheme:    result.Scheme,
			Version:   result.Version,
		})
	case OutputFormatText:
		for _, share := range result.Shares {
			fmt.Fprintln(p.writer, share)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// secretOutput is the structured form of a recovered secret.
type secretOutput struct {
	Secret   string `json:"secret" yaml:"secret"`
	Encoding string `json:"encoding" yaml:"encoding"`
	Scheme   string `json:"scheme" yaml:"scheme"`
}

// PrintSecret prints a recovered secret already rendered with EncodeOutput.
func (p *Printer) PrintSecret(secret string, enc threshold.Encoding, scheme string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(secretOutput{
			Secret:   secret,
			Encoding: string(enc),
			Scheme:   scheme,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, secret)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSchemes prints the registered schemes
func (p *Printer) PrintSchemes(schemes []threshold.SchemeInfo) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"schemes": schemes,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "%-8s %-8s %-12s %-12s %-10s\n", "NAME", "VERSION", "FIELD", "MAX SECRET", "MAX SHARES")
		fmt.Fprintln(p.writer, strings.Repeat("-", 54))
		for _, s := range schemes {
			name := s.Name
			if s.Default {
				name += "*"
			}
			fmt.Fprintf(p.writer, "%-8s %-8d %-12s %-12d %-10d\n",
				name, s.Version, s.Field, s.MaxSecretBytes, s.MaxShares)
		}
		fmt.Fprintln(p.writer, "\n* default scheme")
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"status": "error",
			"kind":   threshold.ErrorKind(err),
			"error":  err.Error(),
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printStructured(data interface{}) error {
	if p.format == OutputFormatYAML {
		return p.printYAML(data)
	}
	return p.printJSON(data)
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML prints data as YAML
func (p *Printer) printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
