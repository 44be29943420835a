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
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
)

// Encoding names how a secret travels in a request or response.
type Encoding string

const (
	// EncodingUTF8 carries the secret as text.
	EncodingUTF8 Encoding = "utf-8"

	// EncodingBase64 carries arbitrary bytes as URL-safe base64.
	EncodingBase64 Encoding = "base64"
)

// ParseEncoding accepts "utf-8" (also "utf8", the default when empty) and
// "base64".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "base64":
		return EncodingBase64, nil
	default:
		return "", fmt.Errorf("%w: unsupported encoding %q", ErrInvalidEncoding, s)
	}
}

// DecodeInput converts a request value to secret bytes. Base64 input may
// be padded or unpadded.
func DecodeInput(value string, enc Encoding) ([]byte, error) {
	raw := []byte(value)
	defer secure.Wipe(raw)
	return DecodeInputBytes(raw, enc)
}

// DecodeInputBytes is DecodeInput for input already held in a buffer the
// caller wipes. The result never aliases value and is owned by the caller.
func DecodeInputBytes(value []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingUTF8, "":
		if !utf8.Valid(value) {
			return nil, fmt.Errorf("%w: secret is not valid UTF-8", ErrInvalidEncoding)
		}
		return bytes.Clone(value), nil
	case EncodingBase64:
		value = bytes.TrimRight(value, "=")
		secret := make([]byte, base64.RawURLEncoding.DecodedLen(len(value)))
		n, err := base64.RawURLEncoding.Decode(secret, value)
		if err != nil {
			secure.Wipe(secret)
			return nil, fmt.Errorf("%w: secret is not URL-safe base64", ErrInvalidEncoding)
		}
		return secret[:n], nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrInvalidEncoding, enc)
	}
}

// EncodeOutput renders recovered bytes. With no requested encoding, valid
// UTF-8 is returned as text and anything else as padded URL-safe base64.
// Requesting utf-8 for bytes that are not valid UTF-8 is an error.
func EncodeOutput(secret []byte, enc Encoding) (string, Encoding, error) {
	switch enc {
	case "":
		if utf8.Valid(secret) {
			return string(secret), EncodingUTF8, nil
		}
		return base64.URLEncoding.EncodeToString(secret), EncodingBase64, nil
	case EncodingUTF8:
		if !utf8.Valid(secret) {
			return "", "", fmt.Errorf("%w: recovered secret is not valid UTF-8", ErrInvalidEncoding)
		}
		return string(secret), EncodingUTF8, nil
	case EncodingBase64:
		return base64.URLEncoding.EncodeToString(secret), EncodingBase64, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported encoding %q", ErrInvalidEncoding, enc)
	}
}
