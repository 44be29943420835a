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

// Package validation provides input validation shared by every databox
// entry point (REST, gRPC, HTTP/3, CLI). It checks shape and size only;
// the secret sharing engine remains the authority on share contents.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxShareLength bounds a single encoded share. The largest prime
	// field share (p4253) is well under 1 KiB; SSSaaS shares of a large
	// secret are the longest accepted form.
	MaxShareLength = 64 * 1024

	// MaxShareCount bounds the number of shares in one combine request.
	MaxShareCount = 65535

	maxLogLength = 1000
)

var (
	// schemePattern matches scheme identifiers embedded in share strings.
	schemePattern = regexp.MustCompile(`^[a-z][a-z0-9]{0,15}$`)

	// sharePattern allows the characters used by every share format:
	// prefixes and separators, decimal indices, URL-safe and standard
	// base64 with padding.
	sharePattern = regexp.MustCompile(`^[A-Za-z0-9:_\-+/=]+$`)
)

// ValidateSchemeName validates a scheme identifier. An empty name is
// allowed and selects the configured default.
func ValidateSchemeName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > 16 {
		return fmt.Errorf("scheme name too long (max 16 characters)")
	}
	if !schemePattern.MatchString(name) {
		return fmt.Errorf("scheme name contains invalid characters (allowed: a-z, 0-9, leading letter)")
	}
	return nil
}

// ValidateShare rejects share strings that cannot belong to any supported
// format before they reach a decoder.
func ValidateShare(share string) error {
	if share == "" {
		return fmt.Errorf("share cannot be empty")
	}

	// Check length before the pattern to keep regexp work bounded
	if len(share) > MaxShareLength {
		return fmt.Errorf("share too long (max %d characters)", MaxShareLength)
	}

	if strings.Contains(share, "\x00") {
		return fmt.Errorf("share contains null byte")
	}

	if !sharePattern.MatchString(share) {
		return fmt.Errorf("share contains invalid characters")
	}
	return nil
}

// ValidateShares validates a combine request's share list. It does not
// enforce the threshold, which only the shares themselves can reveal.
func ValidateShares(shares []string) error {
	if len(shares) == 0 {
		return fmt.Errorf("shares cannot be empty")
	}
	if len(shares) > MaxShareCount {
		return fmt.Errorf("too many shares (max %d)", MaxShareCount)
	}
	for i, s := range shares {
		if err := ValidateShare(s); err != nil {
			return fmt.Errorf("share %d: %w", i, err)
		}
	}
	return nil
}

// TrimShares drops surrounding whitespace and blank entries, as found in
// share files and pasted input.
func TrimShares(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}

	return s
}
