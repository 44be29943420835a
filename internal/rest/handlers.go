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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
	"github.com/jeremyhahn/go-databox/pkg/health"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"github.com/jeremyhahn/go-databox/pkg/validation"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// HealthChecker is implemented by *health.Checker.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// HandlerContext holds the dependencies shared by all handlers.
type HandlerContext struct {
	Service       *threshold.Service
	HealthChecker HealthChecker
	Version       string
	MaxBodyBytes  int64
}

// NewHandlerContext creates a new handler context.
func NewHandlerContext(service *threshold.Service, version string, maxBodyBytes int64) *HandlerContext {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &HandlerContext{
		Service:      service,
		Version:      version,
		MaxBodyBytes: maxBodyBytes,
	}
}

// SetHealthChecker sets the health checker used by the probe handlers.
func (h *HandlerContext) SetHealthChecker(checker HealthChecker) {
	h.HealthChecker = checker
}

// decodeJSON reads a single JSON object of at most MaxBodyBytes.
func (h *HandlerContext) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("%w: limit is %d bytes", ErrRequestTooLarge, maxBytes.Limit)
		}
		return fmt.Errorf("%w: malformed JSON body", ErrInvalidRequest)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON body", ErrInvalidRequest)
	}
	return nil
}

// SplitHandler handles POST /v1/shamir/secret/split requests.
func (h *HandlerContext) SplitHandler(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	enc, err := threshold.ParseEncoding(req.Encoding)
	if err != nil {
		handleError(w, err)
		return
	}
	if err := validation.ValidateSchemeName(req.Scheme); err != nil {
		handleError(w, fmt.Errorf("%w: %w: %v", threshold.ErrInvalidParameters, threshold.ErrUnknownScheme, err))
		return
	}

	secret, err := threshold.DecodeInput(req.Secret, enc)
	if err != nil {
		handleError(w, err)
		return
	}
	defer secure.Wipe(secret)

	result, err := h.Service.Split(r.Context(), threshold.SplitRequest{
		Secret:    secret,
		Threshold: req.Threshold,
		Shares:    req.Shares,
		Scheme:    req.Scheme,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, SplitResponse{
		Shares:    result.Shares,
		Threshold: result.Threshold,
		Count:     result.Count,
		Encoding:  string(enc),
		Scheme:    result.Scheme,
		Version:   result.Version,
	}, http.StatusOK)
}

// CombineHandler handles POST /v1/shamir/secret/combine requests.
func (h *HandlerContext) CombineHandler(w http.ResponseWriter, r *http.Request) {
	var req CombineRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	var enc threshold.Encoding
	if req.Encoding != "" {
		parsed, err := threshold.ParseEncoding(req.Encoding)
		if err != nil {
			handleError(w, err)
			return
		}
		enc = parsed
	}

	if len(req.Shares) > 0 {
		if err := validation.ValidateShares(req.Shares); err != nil {
			handleError(w, fmt.Errorf("%w: %v", threshold.ErrMalformedShare, err))
			return
		}
	}

	result, err := h.Service.Combine(r.Context(), req.Shares)
	if err != nil {
		handleError(w, err)
		return
	}
	defer secure.Wipe(result.Secret)

	secret, used, err := threshold.EncodeOutput(result.Secret, enc)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, CombineResponse{
		Secret:   secret,
		Encoding: string(used),
		Scheme:   result.Scheme,
	}, http.StatusOK)
}

// ListSchemesHandler handles GET /v1/shamir/schemes requests.
func (h *HandlerContext) ListSchemesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ListSchemesResponse{
		Schemes: h.Service.Schemes(),
		Default: h.Service.DefaultScheme(),
	}, http.StatusOK)
}

// NotFoundHandler answers unknown routes with a JSON error body.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeErrorWithMessage(w, KindNotFound, "no route for "+r.Method+" "+r.URL.Path, http.StatusNotFound)
}

// MethodNotAllowedHandler answers known routes called with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeErrorWithMessage(w, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path, http.StatusMethodNotAllowed)
}
