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

//go:build !pkcs11

package rand

import "fmt"

func newPKCS11Resolver(*PKCS11Config) (Resolver, error) {
	return nil, fmt.Errorf("%w: pkcs11 (build with -tags pkcs11)", ErrNotCompiled)
}

func pkcs11Available() bool {
	return false
}
