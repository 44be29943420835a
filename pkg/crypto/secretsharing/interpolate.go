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

// InterpolateAtZero evaluates at x = 0 the unique polynomial of degree
// len(xs)-1 passing through the points (xs[i], ys[i]).
//
// Every x must be nonzero and distinct modulo p. With fewer points than the
// original threshold the result is a valid field element that is not the
// secret; nothing here can detect that.
func InterpolateAtZero(f *Field, xs, ys []*big.Int) (*big.Int, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidParameters)
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d x values but %d y values", ErrInvalidParameters, len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientShares, len(xs))
	}

	points := make([]*big.Int, len(xs))
	seen := make(map[string]int, len(xs))
	for i, x := range xs {
		if x == nil || ys[i] == nil {
			return nil, fmt.Errorf("%w: point %d is incomplete", ErrMalformedShare, i)
		}
		r := f.Reduce(x)
		if r.Sign() == 0 {
			return nil, fmt.Errorf("%w: point %d has x = 0", ErrMalformedShare, i)
		}
		key := r.String()
		if j, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: points %d and %d have the same x", ErrDuplicateShare, j, i)
		}
		seen[key] = i
		points[i] = r
	}

	secret := new(big.Int)
	for i, xi := range points {
		num := big.NewInt(1)
		den := big.NewInt(1)
		for j, xj := range points {
			if i == j {
				continue
			}
			num = f.Mul(num, f.Neg(xj))
			den = f.Mul(den, f.Sub(xi, xj))
		}

		basis, err := f.Div(num, den)
		if err != nil {
			// Unreachable once x values are distinct.
			return nil, fmt.Errorf("%w: %w", ErrDuplicateShare, err)
		}
		term := f.Mul(ys[i], basis)
		secret = f.Add(secret, term)
		wipeInt(term)
	}
	return secret, nil
}
