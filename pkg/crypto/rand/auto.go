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

package rand

import (
	"errors"
	"sync"
)

// newAutoResolver picks the best available source.
// Priority: PKCS#11 > TPM2 > Software
func newAutoResolver(cfg *Config) (Resolver, error) {
	if pkcs11Available() && cfg.PKCS11Config != nil {
		if r, err := newPKCS11Resolver(cfg.PKCS11Config); err == nil {
			if r.Available() {
				return r, nil
			}
			_ = r.Close()
		}
	}

	if tpm2Available() {
		if r, err := newTPM2Resolver(cfg.TPM2Config); err == nil {
			if r.Available() {
				return r, nil
			}
			_ = r.Close()
		}
	}

	return newSoftwareResolver(), nil
}

// chainResolver serves reads from primary and retries on fallback when
// primary fails.
type chainResolver struct {
	primary  Resolver
	fallback Resolver
	mu       sync.RWMutex
	closed   bool
}

var _ Resolver = (*chainResolver)(nil)

func (c *chainResolver) Rand(n int) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	result, err := c.primary.Rand(n)
	if err != nil {
		result, err = c.fallback.Rand(n)
	}
	return result, err
}

func (c *chainResolver) Read(p []byte) (int, error) {
	return readFrom(p, c.Rand)
}

func (c *chainResolver) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.primary.Available() {
		return c.primary.Mode()
	}
	return c.fallback.Mode()
}

func (c *chainResolver) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && (c.primary.Available() || c.fallback.Available())
}

func (c *chainResolver) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return errors.Join(c.primary.Close(), c.fallback.Close())
}
