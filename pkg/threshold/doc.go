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

// Package threshold is the secret sharing service used by every databox
// transport. It fronts a registry of schemes:
//
//   - p521, p1279, p4253: prime field Shamir sharing from
//     pkg/crypto/secretsharing, one field element per secret.
//   - gf256: byte-wise sharing over GF(2^8) in the "s:<x>:<base64>" share
//     format, for compatibility with shares issued by earlier services.
//   - sssa: SSSaaS compatible shares over the 256-bit prime 2^256-189.
//
// Split selects a scheme by name. Combine detects the scheme from the
// shares themselves and refuses share sets that mix schemes.
//
// The service logs and records metrics for every operation. It never logs
// secrets or shares.
package threshold
