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
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/grpc/metadata"
)

// DefaultAPIKeyHeader carries the API key when no bearer token is sent.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyAuthenticator authenticates requests carrying a configured API key
// in the Authorization bearer token or the API key header. Keys are held
// only as SHA-256 digests and compared in constant time.
type APIKeyAuthenticator struct {
	mu         sync.RWMutex
	keys       []apiKeyEntry
	headerName string
}

type apiKeyEntry struct {
	digest   [sha256.Size]byte
	identity *Identity
}

// APIKeyConfig configures the API key authenticator
type APIKeyConfig struct {
	// Keys maps API keys to identities. A nil identity is named after the
	// key's position.
	Keys map[string]*Identity

	// HeaderName defaults to DefaultAPIKeyHeader.
	HeaderName string
}

// NewAPIKeyAuthenticator creates a new API key authenticator
func NewAPIKeyAuthenticator(config *APIKeyConfig) *APIKeyAuthenticator {
	if config == nil {
		config = &APIKeyConfig{}
	}
	headerName := config.HeaderName
	if headerName == "" {
		headerName = DefaultAPIKeyHeader
	}

	a := &APIKeyAuthenticator{headerName: headerName}
	for key, identity := range config.Keys {
		a.AddKey(key, identity)
	}
	return a
}

// AddKey registers an API key. Empty keys are ignored.
func (a *APIKeyAuthenticator) AddKey(apiKey string, identity *Identity) {
	if apiKey == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if identity == nil {
		identity = &Identity{Subject: fmt.Sprintf("apikey-%d", len(a.keys)+1)}
	}
	a.keys = append(a.keys, apiKeyEntry{digest: sha256.Sum256([]byte(apiKey)), identity: identity})
}

// RemoveKey removes an API key
func (a *APIKeyAuthenticator) RemoveKey(apiKey string) {
	digest := sha256.Sum256([]byte(apiKey))
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.keys[:0]
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(entry.digest[:], digest[:]) != 1 {
			kept = append(kept, entry)
		}
	}
	a.keys = kept
}

// Len returns the number of registered keys.
func (a *APIKeyAuthenticator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// AuthenticateHTTP authenticates an HTTP request using an API key
func (a *APIKeyAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	apiKey := bearerToken(r.Header.Get("Authorization"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(r.Header.Get(a.headerName))
	}

	identity, err := a.lookup(apiKey)
	if err != nil {
		return nil, err
	}
	identity.Attributes["remote_addr"] = r.RemoteAddr
	return identity, nil
}

// AuthenticateGRPC authenticates a gRPC request using an API key from metadata
func (a *APIKeyAuthenticator) AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Identity, error) {
	apiKey := bearerToken(firstMetadata(md, "authorization"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(firstMetadata(md, strings.ToLower(a.headerName)))
	}
	return a.lookup(apiKey)
}

// lookup compares against every key so timing does not reveal which
// entry matched.
func (a *APIKeyAuthenticator) lookup(apiKey string) (*Identity, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrNoCredentials)
	}
	digest := sha256.Sum256([]byte(apiKey))

	a.mu.RLock()
	defer a.mu.RUnlock()

	var match *Identity
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(entry.digest[:], digest[:]) == 1 && match == nil {
			match = entry.identity
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: unknown API key", ErrInvalidCredentials)
	}

	identity := match.clone()
	identity.Attributes["auth_method"] = "apikey"
	return identity, nil
}

// Name returns the authenticator name
func (a *APIKeyAuthenticator) Name() string {
	return "apikey"
}
