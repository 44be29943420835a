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

// Polynomial is a polynomial over a prime field with coefficients stored in
// ascending order, coeffs[0] being the constant term.
type Polynomial struct {
	field  *Field
	coeffs []*big.Int
}

// NewPolynomial creates a polynomial with the given coefficients, constant
// term first. Coefficients are reduced into the field.
func NewPolynomial(f *Field, coeffs ...*big.Int) (*Polynomial, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidParameters)
	}
	if len(coeffs) == 0 {
		return nil, fmt.Errorf("%w: at least one coefficient is required", ErrInvalidParameters)
	}

	p := &Polynomial{field: f, coeffs: make([]*big.Int, len(coeffs))}
	for i, c := range coeffs {
		if c == nil {
			return nil, fmt.Errorf("%w: coefficient %d is nil", ErrInvalidParameters, i)
		}
		p.coeffs[i] = f.Reduce(c)
	}
	return p, nil
}

// NewRandomPolynomial creates a polynomial of the given degree whose constant
// term is intercept and whose remaining coefficients are drawn uniformly from
// the field using r.
func NewRandomPolynomial(f *Field, intercept *big.Int, degree int, r io.Reader) (*Polynomial, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidParameters)
	}
	if !f.Contains(intercept) {
		return nil, fmt.Errorf("%w: intercept is not a field element", ErrInvalidParameters)
	}
	if degree < 0 {
		return nil, fmt.Errorf("%w: degree must be non-negative, got %d", ErrInvalidParameters, degree)
	}

	p := &Polynomial{field: f, coeffs: make([]*big.Int, degree+1)}
	p.coeffs[0] = new(big.Int).Set(intercept)
	for i := 1; i <= degree; i++ {
		c, err := f.Random(r)
		if err != nil {
			p.Wipe()
			return nil, err
		}
		p.coeffs[i] = c
	}
	return p, nil
}

// Degree returns the degree of the polynomial.
func (p *Polynomial) Degree() int {
	return len(p.coeffs) - 1
}

// Evaluate returns f(x) mod p using Horner's method.
func (p *Polynomial) Evaluate(x *big.Int) *big.Int {
	acc := new(big.Int)
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		acc.Mul(acc, x)
		acc.Add(acc, p.coeffs[i])
		acc.Mod(acc, p.field.p)
	}
	return acc
}

// Wipe zeroes every coefficient. The polynomial is unusable afterwards.
func (p *Polynomial) Wipe() {
	for i, c := range p.coeffs {
		wipeInt(c)
		p.coeffs[i] = nil
	}
	p.coeffs = nil
}
