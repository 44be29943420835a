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

//go:build pkcs11

package rand

import (
	"errors"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// pkcs11Resolver draws entropy with C_GenerateRandom on an HSM slot.
type pkcs11Resolver struct {
	ctx      *pkcs11.Ctx
	session  pkcs11.SessionHandle
	loggedIn bool
	mu       sync.Mutex
}

var _ Resolver = (*pkcs11Resolver)(nil)

func newPKCS11Resolver(config *PKCS11Config) (Resolver, error) {
	if config == nil || config.Module == "" {
		return nil, errors.New("PKCS#11 module path is required")
	}

	ctx := pkcs11.New(config.Module)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 module: %s", config.Module)
	}
	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("failed to initialize PKCS#11: %w", err)
	}

	// Some tokens only expose slots after GetSlotList.
	if _, err := ctx.GetSlotList(true); err != nil {
		_ = ctx.Finalize()
		ctx.Destroy()
		return nil, fmt.Errorf("failed to get PKCS#11 slot list: %w", err)
	}

	session, err := ctx.OpenSession(config.SlotID, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		_ = ctx.Finalize()
		ctx.Destroy()
		return nil, fmt.Errorf("failed to open PKCS#11 session: %w", err)
	}

	r := &pkcs11Resolver{ctx: ctx, session: session}
	if config.PIN != "" {
		if err := ctx.Login(session, pkcs11.CKU_USER, config.PIN); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to authenticate with PKCS#11: %w", err)
		}
		r.loggedIn = true
	}
	return r, nil
}

func pkcs11Available() bool {
	return true
}

func (p *pkcs11Resolver) Rand(n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil, ErrClosed
	}
	result, err := p.ctx.GenerateRandom(p.session, n)
	if err != nil {
		return nil, fmt.Errorf("PKCS#11 random generation failed: %w", err)
	}
	return result, nil
}

func (p *pkcs11Resolver) Read(b []byte) (int, error) {
	return readFrom(b, p.Rand)
}

func (p *pkcs11Resolver) Mode() Mode { return ModePKCS11 }

func (p *pkcs11Resolver) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx != nil
}

func (p *pkcs11Resolver) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil
	}
	if p.loggedIn {
		_ = p.ctx.Logout(p.session)
	}
	_ = p.ctx.CloseSession(p.session)
	_ = p.ctx.Finalize()
	p.ctx.Destroy()
	p.ctx = nil
	return nil
}
