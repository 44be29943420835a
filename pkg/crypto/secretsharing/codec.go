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
	"fmt"
	"math/big"
)

// secretMarker is prepended to every secret before conversion so leading
// zero bytes, and the empty secret, survive the trip through an integer.
const secretMarker byte = 0x01

// MaxSecretBytes returns the largest secret length L such that every L-byte
// secret encodes to a value below p. The encoding 0x01 || secret occupies
// 8L+1 bits and p has at least Bits()-1 bits of headroom.
func (f *Field) MaxSecretBytes() int {
	return (f.bits - 2) / 8
}

// EncodeSecret converts secret into a field element.
func (f *Field) EncodeSecret(secret []byte) (*big.Int, error) {
	if limit := f.MaxSecretBytes(); len(secret) > limit {
		return nil, fmt.Errorf("%w: secret is %d bytes, field capacity is %d bytes",
			ErrSecretTooLarge, len(secret), limit)
	}

	buf := make([]byte, len(secret)+1)
	defer wipeBytes(buf)
	buf[0] = secretMarker
	copy(buf[1:], secret)

	v := new(big.Int).SetBytes(buf)
	if v.Cmp(f.p) >= 0 {
		wipeInt(v)
		return nil, fmt.Errorf("%w: encoded secret is not below the prime", ErrSecretTooLarge)
	}
	return v, nil
}

// DecodeSecret reverses EncodeSecret and reproduces the exact byte sequence,
// including leading zeros.
func (f *Field) DecodeSecret(v *big.Int) ([]byte, error) {
	if !f.Contains(v) {
		return nil, fmt.Errorf("%w: value is outside the field", ErrDecode)
	}

	buf := v.Bytes()
	defer wipeBytes(buf)

	if len(buf) == 0 || buf[0] != secretMarker {
		return nil, fmt.Errorf("%w: missing secret marker", ErrDecode)
	}
	if len(buf)-1 > f.MaxSecretBytes() {
		return nil, fmt.Errorf("%w: decoded length %d exceeds field capacity", ErrDecode, len(buf)-1)
	}

	secret := make([]byte, len(buf)-1)
	copy(secret, buf[1:])
	return secret, nil
}
