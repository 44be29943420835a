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

import "errors"

var (
	// ErrInvalidParameters indicates threshold or share counts out of bounds.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrSecretTooLarge indicates the secret exceeds the configured or field capacity.
	ErrSecretTooLarge = errors.New("secret too large")

	// ErrMalformedShare indicates a share that cannot be parsed or is out of range.
	ErrMalformedShare = errors.New("malformed share")

	// ErrDuplicateShare indicates two shares with the same index.
	ErrDuplicateShare = errors.New("duplicate share")

	// ErrInsufficientShares indicates fewer than two shares were supplied.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrDecode indicates the recovered field element is not a valid secret encoding.
	ErrDecode = errors.New("decode error")

	// ErrZeroInverse is returned when inverting or dividing by zero.
	ErrZeroInverse = errors.New("inverse of zero")

	// ErrUnknownScheme indicates a scheme name that is not registered.
	ErrUnknownScheme = errors.New("unknown scheme")
)
