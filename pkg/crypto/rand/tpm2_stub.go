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

//go:build !tpm2

package rand

import "fmt"

func newTPM2Resolver(*TPM2Config) (Resolver, error) {
	return nil, fmt.Errorf("%w: tpm2 (build with -tags tpm2)", ErrNotCompiled)
}

func tpm2Available() bool {
	return false
}
