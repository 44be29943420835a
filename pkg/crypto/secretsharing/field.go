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
	"io"
	"math/big"
)

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// Field is the prime field GF(p). It is immutable after construction.
// Every result is freshly allocated and reduced into [0, p); arguments are
// never modified.
type Field struct {
	p       *big.Int
	pMinus2 *big.Int
	bits    int
	byteLen int
}

// NewField creates a field over the prime p. The modulus is checked with
// ProbablyPrime, so constructing very large fields is not free.
func NewField(p *big.Int) (*Field, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: prime is required", ErrInvalidParameters)
	}
	if p.Cmp(bigTwo) <= 0 {
		return nil, fmt.Errorf("%w: prime must be greater than 2", ErrInvalidParameters)
	}
	if !p.ProbablyPrime(20) {
		return nil, fmt.Errorf("%w: modulus is not prime", ErrInvalidParameters)
	}
	return newField(p), nil
}

// newField skips the primality test. Only used for the built-in Mersenne primes.
func newField(p *big.Int) *Field {
	q := new(big.Int).Set(p)
	return &Field{
		p:       q,
		pMinus2: new(big.Int).Sub(q, bigTwo),
		bits:    q.BitLen(),
		byteLen: (q.BitLen() + 7) / 8,
	}
}

// mersenne returns 2^n - 1.
func mersenne(n uint) *big.Int {
	m := new(big.Int).Lsh(bigOne, n)
	return m.Sub(m, bigOne)
}

// maxIndex returns the largest usable share index, min(MaxShareIndex, p-1).
func (f *Field) maxIndex() int {
	if f.p.IsInt64() && f.p.Int64()-1 < MaxShareIndex {
		return int(f.p.Int64() - 1)
	}
	return MaxShareIndex
}

// Prime returns a copy of the modulus.
func (f *Field) Prime() *big.Int {
	return new(big.Int).Set(f.p)
}

// Bits returns the bit length of the modulus.
func (f *Field) Bits() int {
	return f.bits
}

// ByteLen returns the number of bytes needed to hold any field element.
func (f *Field) ByteLen() int {
	return f.byteLen
}

// Contains reports whether a is a canonical element, 0 <= a < p.
func (f *Field) Contains(a *big.Int) bool {
	return a != nil && a.Sign() >= 0 && a.Cmp(f.p) < 0
}

// Equal reports whether both fields share the same modulus.
func (f *Field) Equal(other *Field) bool {
	if f == other {
		return true
	}
	if f == nil || other == nil {
		return false
	}
	return f.p.Cmp(other.p) == 0
}

// Reduce returns a mod p in [0, p).
func (f *Field) Reduce(a *big.Int) *big.Int {
	return new(big.Int).Mod(a, f.p)
}

// Add returns (a + b) mod p.
func (f *Field) Add(a, b *big.Int) *big.Int {
	r := new(big.Int).Add(a, b)
	return r.Mod(r, f.p)
}

// Sub returns (a - b) mod p, normalized into [0, p).
func (f *Field) Sub(a, b *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	return r.Mod(r, f.p)
}

// Mul returns (a * b) mod p.
func (f *Field) Mul(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, f.p)
}

// Neg returns -a mod p.
func (f *Field) Neg(a *big.Int) *big.Int {
	r := new(big.Int).Neg(a)
	return r.Mod(r, f.p)
}

// Inverse returns a^-1 mod p using Fermat's little theorem, a^(p-2).
func (f *Field) Inverse(a *big.Int) (*big.Int, error) {
	r := f.Reduce(a)
	if r.Sign() == 0 {
		return nil, ErrZeroInverse
	}
	return r.Exp(r, f.pMinus2, f.p), nil
}

// Div returns a * b^-1 mod p.
func (f *Field) Div(a, b *big.Int) (*big.Int, error) {
	inv, err := f.Inverse(b)
	if err != nil {
		return nil, err
	}
	return f.Mul(a, inv), nil
}

// Random draws an element uniformly from [0, p) by rejection sampling
// ByteLen bytes at a time from r, masked to the bit length of p.
func (f *Field) Random(r io.Reader) (*big.Int, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidParameters)
	}

	buf := make([]byte, f.byteLen)
	defer wipeBytes(buf)

	mask := byte(0xff >> uint(8*f.byteLen-f.bits))
	v := new(big.Int)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read random coefficient: %w", err)
		}
		buf[0] &= mask
		v.SetBytes(buf)
		if v.Cmp(f.p) < 0 {
			return v, nil
		}
	}
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// wipeInt zeroes the words backing v before resetting it.
func wipeInt(v *big.Int) {
	if v == nil {
		return
	}
	words := v.Bits()
	for i := range words {
		words[i] = 0
	}
	v.SetInt64(0)
}
