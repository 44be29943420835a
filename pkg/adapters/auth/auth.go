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

// Package auth provides pluggable request authentication for the databox
// transports. An Authenticator resolves an HTTP request or gRPC metadata to
// an Identity; transports reject the request when it returns an error.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

var (
	// ErrNoCredentials means the request carried no credential for this authenticator.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials means a credential was present but rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Identity represents an authenticated caller.
type Identity struct {
	// Subject identifies the caller, e.g. the API key name or JWT subject.
	Subject string

	// Claims holds verified attributes such as roles.
	Claims map[string]interface{}

	// Attributes describe the authentication itself (method, remote address).
	Attributes map[string]string
}

// Authenticator is the interface for authentication adapters.
type Authenticator interface {
	AuthenticateHTTP(r *http.Request) (*Identity, error)
	AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Identity, error)

	// Name returns the authenticator name for logging
	Name() string
}

type contextKey struct{}

// GetIdentity extracts the identity from a context
func GetIdentity(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(contextKey{}).(*Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity adds an identity to a context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// HasRole checks if the identity has a specific role
func (i *Identity) HasRole(role string) bool {
	if i == nil || i.Claims == nil {
		return false
	}

	switch r := i.Claims["roles"].(type) {
	case []string:
		for _, v := range r {
			if v == role {
				return true
			}
		}
	case []interface{}:
		for _, v := range r {
			if str, ok := v.(string); ok && str == role {
				return true
			}
		}
	case string:
		return r == role
	}
	return false
}

func (i *Identity) clone() *Identity {
	cloned := &Identity{
		Subject:    i.Subject,
		Claims:     make(map[string]interface{}, len(i.Claims)),
		Attributes: make(map[string]string, len(i.Attributes)+2),
	}
	for k, v := range i.Claims {
		cloned.Claims[k] = v
	}
	for k, v := range i.Attributes {
		cloned.Attributes[k] = v
	}
	return cloned
}

// bearerToken returns the token of an "Authorization: Bearer" value.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func firstMetadata(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
