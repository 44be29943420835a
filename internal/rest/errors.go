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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jeremyhahn/go-databox/pkg/threshold"
)

// Error kinds produced by the transport itself.
const (
	KindInvalidRequest  = "invalid_request"
	KindRequestTooLarge = "request_too_large"
	KindUnauthorized    = "unauthorized"
	KindNotFound        = "not_found"
	KindInternal        = threshold.KindInternal
)

// Common errors
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrRequestTooLarge = errors.New("request body too large")
)

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, kind, message string, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error:   kind,
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// mapErrorToStatusCode maps errors to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	}

	switch threshold.ErrorKind(err) {
	case threshold.KindSecretTooLarge:
		return http.StatusRequestEntityTooLarge
	case threshold.KindTimeout:
		return http.StatusGatewayTimeout
	case threshold.KindCanceled:
		// Client closed request; nobody reads the body.
		return 499
	}
	if threshold.IsClientError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorKind names err for the error body.
func errorKind(err error) string {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, ErrRequestTooLarge):
		return KindRequestTooLarge
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	}
	return threshold.ErrorKind(err)
}

// handleError maps err to a status code and writes the error response.
// Internal errors are not echoed to the client.
func handleError(w http.ResponseWriter, err error) {
	status := mapErrorToStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	writeErrorWithMessage(w, errorKind(err), message, status)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.Any("error", err))
	}
}
