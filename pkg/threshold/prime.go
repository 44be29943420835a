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
	"fmt"

	"github.com/jeremyhahn/go-databox/pkg/crypto/secretsharing"
)

// primeScheme adapts a secretsharing.Engine.
type primeScheme struct {
	engine *secretsharing.Engine
}

func newPrimeScheme(ps *secretsharing.Scheme, cfg *Config) (*primeScheme, error) {
	maxSecret := ps.MaxSecretBytes()
	if cfg.MaxSecretBytes > 0 && cfg.MaxSecretBytes < maxSecret {
		maxSecret = cfg.MaxSecretBytes
	}

	engine, err := secretsharing.NewEngineWithScheme(ps, &secretsharing.Config{
		MaxSecretBytes: maxSecret,
		MaxShares:      cfg.MaxShares,
		Random:         cfg.Random,
	})
	if err != nil {
		return nil, err
	}
	return &primeScheme{engine: engine}, nil
}

func (p *primeScheme) Name() string        { return p.engine.Scheme().Name() }
func (p *primeScheme) Version() int        { return p.engine.Scheme().Version() }
func (p *primeScheme) MaxSecretBytes() int { return p.engine.MaxSecretBytes() }
func (p *primeScheme) MaxShares() int      { return p.engine.MaxShares() }

func (p *primeScheme) Field() string {
	return fmt.Sprintf("prime 2^%d-1", p.engine.Scheme().Field().Bits())
}

func (p *primeScheme) Split(secret []byte, threshold, total int) ([]string, error) {
	return p.engine.SplitStrings(secret, threshold, total)
}

// Combine fails with ErrMalformedShare when the shares mix prime schemes.
func (p *primeScheme) Combine(shares []string) ([]byte, error) {
	return secretsharing.CombineStrings(shares)
}
