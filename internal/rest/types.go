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

package rest

import "github.com/jeremyhahn/go-databox/pkg/threshold"

// HealthResponse represents the plain health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// SplitRequest represents a secret split request.
type SplitRequest struct {
	Secret    string `json:"secret"`
	Shares    int    `json:"shares"`
	Threshold int    `json:"threshold"`

	// Encoding is "utf-8" (default) or "base64".
	Encoding string `json:"encoding,omitempty"`

	// Scheme defaults to the server's default scheme.
	Scheme string `json:"scheme,omitempty"`
}

// SplitResponse represents the response for a split.
type SplitResponse struct {
	Shares    []string `json:"shares"`
	Threshold int      `json:"threshold"`
	Count     int      `json:"count"`
	Encoding  string   `json:"encoding"`
	Scheme    string   `json:"scheme"`
	Version   int      `json:"version"`
}

// CombineRequest represents a secret combine request.
type CombineRequest struct {
	Shares []string `json:"shares"`

	// Encoding forces the response encoding. Empty returns UTF-8 text when
	// possible and base64 otherwise.
	Encoding string `json:"encoding,omitempty"`
}

// CombineResponse represents the response for a combine.
type CombineResponse struct {
	Secret   string `json:"secret"`
	Encoding string `json:"encoding"`
	Scheme   string `json:"scheme"`
}

// ListSchemesResponse represents the response for listing schemes.
type ListSchemesResponse struct {
	Schemes []threshold.SchemeInfo `json:"schemes"`
	Default string                 `json:"default"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
