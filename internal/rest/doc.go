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

// Package rest exposes the secret sharing service over HTTP.
//
// # API Endpoints
//
// Health (no authentication):
//   - GET /health - Returns {"status": "ok"}
//   - GET /health/live, /health/ready, /health/startup - Kubernetes probes
//
// Secret sharing (authentication and rate limiting when configured):
//   - POST /v1/shamir/secret/split - Split a secret into shares
//   - POST /v1/shamir/secret/combine - Recover a secret from shares
//   - GET /v1/shamir/schemes - List registered schemes
//
// Split request:
//
//	{"secret": "hunter2", "shares": 5, "threshold": 3, "encoding": "utf-8", "scheme": "p521"}
//
// Combine request:
//
//	{"shares": ["sss:p521:1:...", "sss:p521:4:..."]}
//
// Errors are returned as {"error": "<kind>", "message": "...", "code": <status>}.
// Every response carries X-Request-ID, taken from the request when valid and
// generated as db_<uuid> otherwise.
package rest
