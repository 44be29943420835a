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
	"encoding/hex"
	"fmt"

	"github.com/SSSaaS/sssa-golang"
	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
)

// sssaXLength is the length of the base64 x coordinate that opens every
// SSSaaS share.
const sssaXLength = 44

// sssaScheme produces SSSaaS shares over the prime 2^256-189. The secret is
// hex encoded first: the library pads the last 32-byte chunk with NULs and
// strips them on combine, which would corrupt secrets ending in zero bytes.
// Randomness comes from crypto/rand inside the library.
type sssaScheme struct {
	maxSecretBytes int
	maxShares      int
}

func newSSSAScheme(maxSecretBytes, maxShares int) (*sssaScheme, error) {
	if maxShares <= 0 {
		maxShares = 255
	}
	return &sssaScheme{maxSecretBytes: maxSecretBytes, maxShares: maxShares}, nil
}

func (s *sssaScheme) Name() string        { return SchemeSSSA }
func (s *sssaScheme) Version() int        { return 1 }
func (s *sssaScheme) Field() string       { return "prime 2^256-189" }
func (s *sssaScheme) MaxSecretBytes() int { return s.maxSecretBytes }
func (s *sssaScheme) MaxShares() int      { return s.maxShares }

// Split requires a non-empty secret.
func (s *sssaScheme) Split(secret []byte, threshold, total int) ([]string, error) {
	if err := validateSplit(s, len(secret), threshold, total); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: %s cannot split an empty secret", ErrInvalidParameters, SchemeSSSA)
	}

	secretHex := hex.EncodeToString(secret)
	shares, err := sssa.Create(threshold, total, secretHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return shares, nil
}

// Combine validates shares before handing them to the library, which
// assumes well-formed input.
func (s *sssaScheme) Combine(shares []string) (secret []byte, err error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 shares, got %d", ErrInsufficientShares, len(shares))
	}

	seen := make(map[string]int, len(shares))
	for i, share := range shares {
		if !isSSSAShare(share) {
			return nil, fmt.Errorf("%w: share %d is not a valid SSSaaS share", ErrMalformedShare, i)
		}
		if len(share) != len(shares[0]) {
			return nil, fmt.Errorf("%w: share %d has a different length", ErrMalformedShare, i)
		}
		x := share[:sssaXLength]
		if j, ok := seen[x]; ok {
			return nil, fmt.Errorf("%w: shares %d and %d have the same x coordinate", ErrDuplicateShare, j, i)
		}
		seen[x] = i
	}

	defer func() {
		if r := recover(); r != nil {
			secret = nil
			err = fmt.Errorf("%w: combine failed: %v", ErrMalformedShare, r)
		}
	}()

	secretHex, err := sssa.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedShare, err)
	}

	secret, err = hex.DecodeString(secretHex)
	if err != nil || len(secret) == 0 {
		secure.Wipe(secret)
		return nil, fmt.Errorf("%w: recovered value is not a valid secret encoding", ErrDecode)
	}
	return secret, nil
}

func isSSSAShare(s string) bool {
	return len(s) >= 2*sssaXLength && sssa.IsValidShare(s)
}
