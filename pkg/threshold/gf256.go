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
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/vault/shamir"
	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
)

const (
	gf256Prefix    = "s:"
	gf256MaxShares = 255
)

// gf256Scheme shares each secret byte independently over GF(2^8) with the
// AES reduction polynomial x^8+x^4+x^3+x+1. Shares are encoded as
// "s:<x>:<urlsafe base64 payload>", the payload holding one field element
// per secret byte. Splitting evaluates at x = 1..N; combining uses
// hashicorp/vault/shamir, which works over the same field.
type gf256Scheme struct {
	maxSecretBytes int
	maxShares      int
	random         io.Reader
}

func newGF256Scheme(maxSecretBytes, maxShares int, random io.Reader) (*gf256Scheme, error) {
	if maxShares <= 0 || maxShares > gf256MaxShares {
		maxShares = gf256MaxShares
	}
	if random == nil {
		random = rand.Reader
	}
	return &gf256Scheme{maxSecretBytes: maxSecretBytes, maxShares: maxShares, random: random}, nil
}

func (g *gf256Scheme) Name() string        { return SchemeGF256 }
func (g *gf256Scheme) Version() int        { return 1 }
func (g *gf256Scheme) Field() string       { return "GF(2^8)" }
func (g *gf256Scheme) MaxSecretBytes() int { return g.maxSecretBytes }
func (g *gf256Scheme) MaxShares() int      { return g.maxShares }

// Split requires a non-empty secret. Shares are returned in index order
// with x = 1..total.
func (g *gf256Scheme) Split(secret []byte, threshold, total int) ([]string, error) {
	if err := validateSplit(g, len(secret), threshold, total); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: %s cannot split an empty secret", ErrInvalidParameters, SchemeGF256)
	}

	// threshold-1 coefficients per secret byte, constant term excluded.
	degree := threshold - 1
	coeffs := make([]byte, len(secret)*degree)
	defer secure.Wipe(coeffs)
	if _, err := io.ReadFull(g.random, coeffs); err != nil {
		return nil, fmt.Errorf("failed to generate random coefficients: %w", err)
	}

	payload := make([]byte, len(secret))
	defer secure.Wipe(payload)

	shares := make([]string, total)
	for i := range shares {
		x := byte(i + 1)
		for b, constant := range secret {
			c := coeffs[b*degree : (b+1)*degree]
			// Horner from the highest degree term down.
			y := byte(0)
			for k := degree - 1; k >= 0; k-- {
				y = gf256Mul(y^c[k], x)
			}
			payload[b] = y ^ constant
		}
		shares[i] = gf256Prefix + strconv.Itoa(int(x)) + ":" +
			base64.URLEncoding.EncodeToString(payload)
	}
	return shares, nil
}

// gf256Mul multiplies modulo x^8+x^4+x^3+x+1 without data dependent branches.
func gf256Mul(a, b byte) byte {
	var p byte
	for range 8 {
		p ^= -(b & 1) & a
		a = (a << 1) ^ (-(a >> 7) & 0x1b)
		b >>= 1
	}
	return p
}

// Combine accepts padded or unpadded payloads.
func (g *gf256Scheme) Combine(shares []string) ([]byte, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 shares, got %d", ErrInsufficientShares, len(shares))
	}

	parts := make([][]byte, len(shares))
	defer func() {
		for _, p := range parts {
			secure.Wipe(p)
		}
	}()

	seen := make(map[byte]int, len(shares))
	for i, s := range shares {
		x, payload, err := parseGF256Share(s)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		if i > 0 && len(payload) != len(parts[0])-1 {
			return nil, fmt.Errorf("%w: share %d has a different length", ErrMalformedShare, i)
		}
		if j, ok := seen[x]; ok {
			return nil, fmt.Errorf("%w: shares %d and %d both have index %d", ErrDuplicateShare, j, i, x)
		}
		seen[x] = i
		parts[i] = append(payload, x)
	}

	secret, err := shamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedShare, err)
	}
	return secret, nil
}

func parseGF256Share(s string) (byte, []byte, error) {
	if !strings.HasPrefix(s, gf256Prefix) {
		return 0, nil, fmt.Errorf("%w: expected s:<x>:<payload>", ErrMalformedShare)
	}
	idx, payload, ok := strings.Cut(s[len(gf256Prefix):], ":")
	if !ok {
		return 0, nil, fmt.Errorf("%w: expected s:<x>:<payload>", ErrMalformedShare)
	}
	if idx == "" || len(idx) > 3 || idx[0] == '0' {
		return 0, nil, fmt.Errorf("%w: invalid share index %q", ErrMalformedShare, idx)
	}
	x, err := strconv.ParseUint(idx, 10, 8)
	if err != nil || x == 0 {
		return 0, nil, fmt.Errorf("%w: share index out of range", ErrMalformedShare)
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: invalid share payload", ErrMalformedShare)
	}
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("%w: empty share payload", ErrMalformedShare)
	}
	// Room for the index byte appended by the caller.
	out := make([]byte, len(data), len(data)+1)
	copy(out, data)
	secure.Wipe(data)
	return byte(x), out, nil
}

func isGF256Share(s string) bool {
	return strings.HasPrefix(s, gf256Prefix)
}
