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
	"context"
	"errors"

	"github.com/jeremyhahn/go-databox/pkg/crypto/secretsharing"
)

// The engine's error kinds are shared by every scheme so transports map
// them in one place.
var (
	ErrInvalidParameters  = secretsharing.ErrInvalidParameters
	ErrSecretTooLarge     = secretsharing.ErrSecretTooLarge
	ErrMalformedShare     = secretsharing.ErrMalformedShare
	ErrDuplicateShare     = secretsharing.ErrDuplicateShare
	ErrInsufficientShares = secretsharing.ErrInsufficientShares
	ErrDecode             = secretsharing.ErrDecode
	ErrUnknownScheme      = secretsharing.ErrUnknownScheme

	// ErrInvalidEncoding indicates an unknown encoding name or a value that
	// does not decode under the requested encoding.
	ErrInvalidEncoding = errors.New("invalid secret encoding")
)

// Error kinds reported by ErrorKind.
const (
	KindInvalidParameters  = "invalid_parameters"
	KindSecretTooLarge     = "secret_too_large"
	KindMalformedShare     = "malformed_share"
	KindDuplicateShare     = "duplicate_share"
	KindInsufficientShares = "insufficient_shares"
	KindDecode             = "decode_error"
	KindUnknownScheme      = "unknown_scheme"
	KindInvalidEncoding    = "invalid_encoding"
	KindTimeout            = "timeout"
	KindCanceled           = "canceled"
	KindInternal           = "internal"
)

// ErrorKind classifies err for metrics and transport error bodies.
// ErrSecretTooLarge is reported ahead of the ErrInvalidParameters it is
// wrapped with.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSecretTooLarge):
		return KindSecretTooLarge
	case errors.Is(err, ErrUnknownScheme):
		return KindUnknownScheme
	case errors.Is(err, ErrInvalidParameters):
		return KindInvalidParameters
	case errors.Is(err, ErrDuplicateShare):
		return KindDuplicateShare
	case errors.Is(err, ErrMalformedShare):
		return KindMalformedShare
	case errors.Is(err, ErrInsufficientShares):
		return KindInsufficientShares
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrInvalidEncoding):
		return KindInvalidEncoding
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}

// IsClientError reports whether err was caused by the request rather than
// the server.
func IsClientError(err error) bool {
	switch ErrorKind(err) {
	case "", KindTimeout, KindCanceled, KindInternal:
		return false
	default:
		return true
	}
}
