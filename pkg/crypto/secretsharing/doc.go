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

// Package secretsharing implements Shamir's Secret Sharing over large prime
// fields.
//
// A secret is divided into N shares where any K of them reconstruct the
// original secret exactly, while K-1 or fewer shares reveal nothing about it
// beyond its length bound and the public parameters.
//
// # Mathematical Foundation
//
// The secret is encoded as a single field element s and used as the constant
// term of a random polynomial of degree K-1:
//
//	f(x) = s + a1*x + a2*x^2 + ... + a(K-1)*x^(K-1)   (mod p)
//
// The coefficients a1 through a(K-1) are drawn uniformly from [0, p) using a
// cryptographically secure random source. Share i is the point (i, f(i)) for
// i = 1..N. The secret is recovered by Lagrange interpolation at x = 0:
//
//	s = Σ y_i · Π_{j≠i} (0 - x_j) / (x_i - x_j)   (mod p)
//
// # Schemes
//
// The prime is not a global. Each share names the scheme it was produced
// under, and a scheme binds an immutable Field:
//
//   - p521:  p = 2^521 - 1,  secrets up to 64 bytes (default)
//   - p1279: p = 2^1279 - 1, secrets up to 159 bytes
//   - p4253: p = 2^4253 - 1, secrets up to 531 bytes
//
// # Secret Encoding
//
// Secrets are encoded as the big-endian integer of 0x01 || secret. The marker
// byte preserves leading zero bytes and lets the empty secret round-trip.
//
// # Share Format
//
//	sss:<scheme>:<x>:<y>
//
// where x is the decimal share index and y is the fixed-width big-endian
// share value in unpadded URL-safe base64.
//
// # Usage Example
//
//	engine, err := secretsharing.NewEngine(&secretsharing.Config{
//	    Scheme: secretsharing.SchemeP521,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	shares, err := engine.SplitStrings([]byte("my secret data"), 3, 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Later, reconstruct with any 3 shares
//	secret, err := secretsharing.CombineStrings(shares[1:4])
//
// # Insufficient Shares
//
// Combining fewer shares than the original threshold still interpolates a
// value, but it is not the secret. Shamir's scheme gives no signal that can
// tell the two cases apart; supplying at least K shares from the same split is
// the caller's responsibility. In practice the wrong value almost always fails
// the marker check and surfaces as ErrDecode, but that is not a guarantee.
//
// # Concurrency
//
// Field, Scheme and Engine are immutable after construction and safe for
// concurrent use. The random source must itself be safe for concurrent reads
// when an Engine is shared; crypto/rand.Reader is.
package secretsharing
