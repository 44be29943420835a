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

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

// ChainAuthenticator tries each authenticator in order and accepts the
// first success. Missing credentials move on to the next authenticator. A
// rejected credential stops the chain, except for the API key authenticator:
// a JWT bearer token is an unknown API key and must reach the JWT verifier.
type ChainAuthenticator struct {
	authenticators []Authenticator
}

// NewChainAuthenticator creates a chain. Nil entries are skipped.
func NewChainAuthenticator(authenticators ...Authenticator) *ChainAuthenticator {
	c := &ChainAuthenticator{}
	for _, a := range authenticators {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// AuthenticateHTTP authenticates with the first matching authenticator.
func (c *ChainAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	return c.try(func(a Authenticator) (*Identity, error) { return a.AuthenticateHTTP(r) })
}

// AuthenticateGRPC authenticates with the first matching authenticator.
func (c *ChainAuthenticator) AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Identity, error) {
	return c.try(func(a Authenticator) (*Identity, error) { return a.AuthenticateGRPC(ctx, md) })
}

func (c *ChainAuthenticator) try(fn func(Authenticator) (*Identity, error)) (*Identity, error) {
	lastErr := ErrNoCredentials
	for _, a := range c.authenticators {
		identity, err := fn(a)
		if err == nil {
			return identity, nil
		}
		lastErr = err
		if !errors.Is(err, ErrNoCredentials) {
			if a.Name() == "apikey" {
				continue
			}
			return nil, err
		}
	}
	return nil, lastErr
}

// Name lists the chained authenticator names.
func (c *ChainAuthenticator) Name() string {
	names := make([]string, len(c.authenticators))
	for i, a := range c.authenticators {
		names[i] = a.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}
