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
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	// SharePrefix starts every encoded prime field share.
	SharePrefix = "sss"

	// MinShareIndex is the smallest valid x coordinate.
	MinShareIndex = 1

	// MaxShareIndex is the largest valid x coordinate.
	MaxShareIndex = 65535

	shareSeparator = ":"
)

// Share is a single point (X, Y) on a secret's polynomial.
type Share struct {
	// Scheme identifies the prime field the share belongs to.
	Scheme *Scheme

	// X is the share index, never 0.
	X int

	// Y is f(X) mod p.
	Y *big.Int
}

// Validate checks the share is complete and in range for its scheme.
func (s Share) Validate() error {
	if s.Scheme == nil {
		return fmt.Errorf("%w: share has no scheme", ErrMalformedShare)
	}
	if limit := s.Scheme.field.maxIndex(); s.X < MinShareIndex || s.X > limit {
		return fmt.Errorf("%w: index %d out of range [%d, %d]",
			ErrMalformedShare, s.X, MinShareIndex, limit)
	}
	if !s.Scheme.field.Contains(s.Y) {
		return fmt.Errorf("%w: value is outside the field", ErrMalformedShare)
	}
	return nil
}

// Equal reports whether two shares carry the same scheme, index and value.
func (s Share) Equal(other Share) bool {
	if !s.Scheme.equal(other.Scheme) || s.X != other.X {
		return false
	}
	if s.Y == nil || other.Y == nil {
		return s.Y == other.Y
	}
	return s.Y.Cmp(other.Y) == 0
}

// Encode serializes the share as sss:<scheme>:<x>:<y>.
func (s Share) Encode() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	y := s.Y.FillBytes(make([]byte, s.Scheme.field.byteLen))
	return strings.Join([]string{
		SharePrefix,
		s.Scheme.name,
		strconv.Itoa(s.X),
		base64.RawURLEncoding.EncodeToString(y),
	}, shareSeparator), nil
}

// DecodeShare parses a share of a built-in scheme produced by Encode.
// Shares of schemes built with NewScheme are decoded with
// (*Scheme).DecodeShare.
func DecodeShare(encoded string) (Share, error) {
	parts, err := splitShare(encoded)
	if err != nil {
		return Share{}, err
	}
	scheme, err := LookupScheme(parts[1])
	if err != nil {
		return Share{}, fmt.Errorf("%w: %w", ErrMalformedShare, err)
	}
	return scheme.decode(parts)
}

// DecodeShare parses a share produced by Encode for this scheme. A share
// naming another scheme is malformed.
func (s *Scheme) DecodeShare(encoded string) (Share, error) {
	parts, err := splitShare(encoded)
	if err != nil {
		return Share{}, err
	}
	if parts[1] != s.name {
		return Share{}, fmt.Errorf("%w: share uses scheme %q, expected %s",
			ErrMalformedShare, parts[1], s.name)
	}
	return s.decode(parts)
}

func splitShare(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty share", ErrMalformedShare)
	}
	parts := strings.Split(encoded, shareSeparator)
	if len(parts) != 4 || parts[0] != SharePrefix {
		return nil, fmt.Errorf("%w: expected %s:<scheme>:<x>:<y>", ErrMalformedShare, SharePrefix)
	}
	return parts, nil
}

func (s *Scheme) decode(parts []string) (Share, error) {
	x, err := parseIndex(parts[2])
	if err != nil {
		return Share{}, err
	}

	raw, err := base64.RawURLEncoding.Strict().DecodeString(parts[3])
	if err != nil {
		return Share{}, fmt.Errorf("%w: invalid share value encoding", ErrMalformedShare)
	}
	if len(raw) != s.field.byteLen {
		return Share{}, fmt.Errorf("%w: share value is %d bytes, expected %d",
			ErrMalformedShare, len(raw), s.field.byteLen)
	}

	share := Share{Scheme: s, X: x, Y: new(big.Int).SetBytes(raw)}
	if err := share.Validate(); err != nil {
		return Share{}, err
	}
	return share, nil
}

// parseIndex accepts only the canonical decimal form, so each share has
// exactly one encoding.
func parseIndex(s string) (int, error) {
	if s == "" || len(s) > 5 || (len(s) > 1 && s[0] == '0') {
		return 0, fmt.Errorf("%w: invalid share index %q", ErrMalformedShare, s)
	}
	x, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid share index %q", ErrMalformedShare, s)
	}
	if x < MinShareIndex {
		return 0, fmt.Errorf("%w: share index must be at least %d", ErrMalformedShare, MinShareIndex)
	}
	return int(x), nil
}

// IsShare reports whether s looks like a prime field share. It does not
// validate the payload.
func IsShare(s string) bool {
	return strings.HasPrefix(s, SharePrefix+shareSeparator)
}
