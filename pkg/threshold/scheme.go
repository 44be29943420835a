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

package threshold

import (
	"fmt"

	"github.com/jeremyhahn/go-databox/pkg/crypto/secretsharing"
)

// Scheme names beyond the prime field schemes.
const (
	SchemeGF256 = "gf256"
	SchemeSSSA  = "sssa"
)

// DefaultByteSchemeMaxSecret caps secrets for gf256 and sssa, which have no
// field-imposed limit, when no limit is configured.
const DefaultByteSchemeMaxSecret = 4096

// Scheme splits secrets into encoded shares and recovers them. Every
// implementation is safe for concurrent use.
type Scheme interface {
	Name() string
	Version() int

	// Field describes the arithmetic, for listings.
	Field() string

	MaxSecretBytes() int
	MaxShares() int

	// Split returns total encoded shares, any threshold of which recover
	// secret. Failures wrap the sentinel errors of this package.
	Split(secret []byte, threshold, total int) ([]string, error)

	// Combine recovers a secret from encoded shares of this scheme.
	Combine(shares []string) ([]byte, error)
}

// SchemeInfo describes a registered scheme.
type SchemeInfo struct {
	Name           string `json:"name" yaml:"name"`
	Version        int    `json:"version" yaml:"version"`
	Field          string `json:"field" yaml:"field"`
	MaxSecretBytes int    `json:"max_secret_bytes" yaml:"max_secret_bytes"`
	MaxShares      int    `json:"max_shares" yaml:"max_shares"`
	Default        bool   `json:"default" yaml:"default"`
}

// AllSchemes lists every scheme name the service can register, prime
// schemes first in order of field size.
func AllSchemes() []string {
	names := make([]string, 0, 5)
	for _, s := range secretsharing.Schemes() {
		names = append(names, s.Name())
	}
	return append(names, SchemeGF256, SchemeSSSA)
}

// newScheme builds the named scheme under the service limits.
func newScheme(name string, cfg *Config) (Scheme, error) {
	switch name {
	case SchemeGF256:
		return newGF256Scheme(byteSchemeLimit(cfg), cfg.MaxShares, cfg.Random)
	case SchemeSSSA:
		return newSSSAScheme(byteSchemeLimit(cfg), cfg.MaxShares)
	}

	ps, err := secretsharing.LookupScheme(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return newPrimeScheme(ps, cfg)
}

func byteSchemeLimit(cfg *Config) int {
	if cfg.MaxSecretBytes > 0 {
		return cfg.MaxSecretBytes
	}
	return DefaultByteSchemeMaxSecret
}

func validateSplit(s Scheme, secretLen, threshold, total int) error {
	if threshold < secretsharing.MinThreshold {
		return fmt.Errorf("%w: threshold must be at least %d, got %d",
			ErrInvalidParameters, secretsharing.MinThreshold, threshold)
	}
	if total < threshold {
		return fmt.Errorf("%w: total shares (%d) must be >= threshold (%d)",
			ErrInvalidParameters, total, threshold)
	}
	if total > s.MaxShares() {
		return fmt.Errorf("%w: total shares cannot exceed %d, got %d",
			ErrInvalidParameters, s.MaxShares(), total)
	}
	if secretLen > s.MaxSecretBytes() {
		return fmt.Errorf("%w: %w: secret is %d bytes, maximum is %d",
			ErrInvalidParameters, ErrSecretTooLarge, secretLen, s.MaxSecretBytes())
	}
	return nil
}
