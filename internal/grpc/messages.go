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

package grpc

import "github.com/jeremyhahn/go-databox/pkg/threshold"

// SplitRequest asks for a secret to be split into Shares shares.
type SplitRequest struct {
	Secret    []byte `json:"secret"`
	Threshold int32  `json:"threshold"`
	Shares    int32  `json:"shares"`
	Scheme    string `json:"scheme,omitempty"`
}

// SplitResponse carries the encoded shares.
type SplitResponse struct {
	Shares    []string `json:"shares"`
	Threshold int32    `json:"threshold"`
	Count     int32    `json:"count"`
	Scheme    string   `json:"scheme"`
	Version   int32    `json:"version"`
}

// CombineRequest carries the shares to recover a secret from.
type CombineRequest struct {
	Shares []string `json:"shares"`
}

// CombineResponse carries the recovered secret.
type CombineResponse struct {
	Secret []byte `json:"secret"`
	Scheme string `json:"scheme"`
}

// ListSchemesRequest is empty.
type ListSchemesRequest struct{}

// ListSchemesResponse describes the registered schemes.
type ListSchemesResponse struct {
	Schemes []threshold.SchemeInfo `json:"schemes"`
	Default string                 `json:"default"`
}
