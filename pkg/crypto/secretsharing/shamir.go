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

package secretsharing

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	// MinThreshold is the smallest meaningful threshold.
	MinThreshold = 2

	// DefaultMaxShares bounds N when no limit is configured.
	DefaultMaxShares = 255
)

// Config configures an Engine.
type Config struct {
	// Scheme names the prime field. Defaults to DefaultScheme.
	Scheme string

	// MaxSecretBytes caps the secret length. Zero means the field capacity;
	// larger than the field capacity is an error.
	MaxSecretBytes int

	// MaxShares caps N. Zero means DefaultMaxShares.
	MaxShares int

	// Random supplies coefficient randomness. Defaults to crypto/rand.Reader.
	// Production code must use a cryptographically secure source.
	Random io.Reader
}

// Engine splits and combines secrets under a single scheme. It holds only
// immutable configuration.
type Engine struct {
	scheme         *Scheme
	maxSecretBytes int
	maxShares      int
	random         io.Reader
}

// NewEngine creates an Engine from cfg. A nil cfg selects every default.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	name := cfg.Scheme
	if name == "" {
		name = DefaultScheme
	}
	scheme, err := LookupScheme(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return newEngine(scheme, cfg)
}

// NewEngineWithScheme creates an Engine bound to a caller-built scheme, such
// as a small field for testing.
func NewEngineWithScheme(scheme *Scheme, cfg *Config) (*Engine, error) {
	if scheme == nil {
		return nil, fmt.Errorf("%w: scheme is required", ErrInvalidParameters)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return newEngine(scheme, cfg)
}

func newEngine(scheme *Scheme, cfg *Config) (*Engine, error) {
	capacity := scheme.MaxSecretBytes()
	maxSecret := cfg.MaxSecretBytes
	switch {
	case maxSecret == 0:
		maxSecret = capacity
	case maxSecret < 0:
		return nil, fmt.Errorf("%w: max secret bytes must not be negative", ErrInvalidParameters)
	case maxSecret > capacity:
		return nil, fmt.Errorf("%w: max secret bytes %d exceeds %s capacity of %d",
			ErrInvalidParameters, maxSecret, scheme.name, capacity)
	}

	// Every x must stay nonzero mod p, so N is also bounded by p - 1.
	limit := scheme.field.maxIndex()
	maxShares := cfg.MaxShares
	switch {
	case maxShares == 0:
		maxShares = min(DefaultMaxShares, limit)
	case maxShares < MinThreshold || maxShares > limit:
		return nil, fmt.Errorf("%w: max shares must be in [%d, %d] for %s, got %d",
			ErrInvalidParameters, MinThreshold, limit, scheme.name, maxShares)
	}

	random := cfg.Random
	if random == nil {
		random = rand.Reader
	}

	return &Engine{
		scheme:         scheme,
		maxSecretBytes: maxSecret,
		maxShares:      maxShares,
		random:         random,
	}, nil
}

// Scheme returns the engine's scheme.
func (e *Engine) Scheme() *Scheme { return e.scheme }

// MaxSecretBytes returns the effective secret length limit.
func (e *Engine) MaxSecretBytes() int { return e.maxSecretBytes }

// MaxShares returns the effective share count limit.
func (e *Engine) MaxShares() int { return e.maxShares }

// ValidateParameters checks a split request without doing any work.
func (e *Engine) ValidateParameters(secretLen, threshold, total int) error {
	if threshold < MinThreshold {
		return fmt.Errorf("%w: threshold must be at least %d, got %d",
			ErrInvalidParameters, MinThreshold, threshold)
	}
	if total < threshold {
		return fmt.Errorf("%w: total shares (%d) must be >= threshold (%d)",
			ErrInvalidParameters, total, threshold)
	}
	if total > e.maxShares {
		return fmt.Errorf("%w: total shares cannot exceed %d, got %d",
			ErrInvalidParameters, e.maxShares, total)
	}
	if total > e.scheme.field.maxIndex() {
		return fmt.Errorf("%w: total shares must be below the field modulus, got %d",
			ErrInvalidParameters, total)
	}
	if secretLen > e.maxSecretBytes {
		return fmt.Errorf("%w: %w: secret is %d bytes, maximum is %d",
			ErrInvalidParameters, ErrSecretTooLarge, secretLen, e.maxSecretBytes)
	}
	return nil
}

// Split divides secret into total shares, any threshold of which recover it.
// Shares use x = 1..total. Every call draws a fresh polynomial, so splitting
// the same secret twice yields unrelated share sets. Either all shares are
// returned or none.
func (e *Engine) Split(secret []byte, threshold, total int) ([]Share, error) {
	if err := e.ValidateParameters(len(secret), threshold, total); err != nil {
		return nil, err
	}

	f := e.scheme.field
	s, err := f.EncodeSecret(secret)
	if err != nil {
		return nil, err
	}
	defer wipeInt(s)

	poly, err := NewRandomPolynomial(f, s, threshold-1, e.random)
	if err != nil {
		return nil, err
	}
	defer poly.Wipe()

	shares := make([]Share, total)
	x := new(big.Int)
	for i := range shares {
		x.SetInt64(int64(i + 1))
		shares[i] = Share{
			Scheme: e.scheme,
			X:      i + 1,
			Y:      poly.Evaluate(x),
		}
	}
	return shares, nil
}

// SplitStrings splits secret and encodes every share.
func (e *Engine) SplitStrings(secret []byte, threshold, total int) ([]string, error) {
	shares, err := e.Split(secret, threshold, total)
	if err != nil {
		return nil, err
	}

	encoded := make([]string, len(shares))
	for i, share := range shares {
		s, err := share.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode share %d: %w", share.X, err)
		}
		encoded[i] = s
	}
	return encoded, nil
}

// CombineStrings decodes shares of the engine's scheme and combines them.
// Unlike the package level CombineStrings it accepts schemes built with
// NewScheme.
func (e *Engine) CombineStrings(encoded []string) ([]byte, error) {
	if len(encoded) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 shares, got %d", ErrInsufficientShares, len(encoded))
	}

	shares := make([]Share, len(encoded))
	for i, s := range encoded {
		share, err := e.scheme.DecodeShare(s)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		shares[i] = share
	}
	return Combine(shares)
}

// Combine recovers the secret from shares. It is equivalent to the package
// level Combine and ignores the engine's scheme in favour of the shares' own.
func (e *Engine) Combine(shares []Share) ([]byte, error) {
	return Combine(shares)
}

// Combine recovers a secret from at least two shares of the same scheme by
// Lagrange interpolation at x = 0.
//
// The original threshold is not known here. With fewer shares than the
// threshold the interpolated value is not the secret; it usually fails to
// decode with ErrDecode, but a successful decode is not proof of
// correctness.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 shares, got %d", ErrInsufficientShares, len(shares))
	}

	scheme := shares[0].Scheme
	xs := make([]*big.Int, len(shares))
	ys := make([]*big.Int, len(shares))
	seen := make(map[int]int, len(shares))
	for i, share := range shares {
		if err := share.Validate(); err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		if !share.Scheme.equal(scheme) {
			return nil, fmt.Errorf("%w: share %d uses scheme %s, expected %s",
				ErrMalformedShare, i, share.Scheme.name, scheme.name)
		}
		if j, ok := seen[share.X]; ok {
			return nil, fmt.Errorf("%w: shares %d and %d both have index %d",
				ErrDuplicateShare, j, i, share.X)
		}
		seen[share.X] = i
		xs[i] = big.NewInt(int64(share.X))
		ys[i] = share.Y
	}

	f := scheme.field
	v, err := InterpolateAtZero(f, xs, ys)
	if err != nil {
		return nil, err
	}
	defer wipeInt(v)

	return f.DecodeSecret(v)
}

// CombineStrings decodes and combines encoded shares.
func CombineStrings(encoded []string) ([]byte, error) {
	if len(encoded) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 shares, got %d", ErrInsufficientShares, len(encoded))
	}

	shares := make([]Share, len(encoded))
	for i, s := range encoded {
		share, err := DecodeShare(s)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		shares[i] = share
	}
	return Combine(shares)
}
