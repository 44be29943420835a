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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
)

// JWTAuthenticator authenticates bearer tokens signed with a configured
// public key or HMAC secret.
type JWTAuthenticator struct {
	key     interface{}
	methods []string
	parser  *jwt.Parser
}

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// PublicKey verifies asymmetric signatures (RSA, ECDSA or Ed25519).
	PublicKey crypto.PublicKey

	// HMACSecret verifies HS256/384/512 signatures. Used only when
	// PublicKey is nil.
	HMACSecret []byte

	// Issuer and Audience are enforced when set.
	Issuer   string
	Audience string

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config *JWTConfig) (*JWTAuthenticator, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	var (
		key     interface{}
		methods []string
	)
	switch k := config.PublicKey.(type) {
	case *rsa.PublicKey:
		key, methods = k, []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}
	case *ecdsa.PublicKey:
		key, methods = k, []string{"ES256", "ES384", "ES512"}
	case ed25519.PublicKey:
		key, methods = k, []string{"EdDSA"}
	case nil:
		if len(config.HMACSecret) == 0 {
			return nil, fmt.Errorf("public key or HMAC secret is required")
		}
		if len(config.HMACSecret) < 32 {
			return nil, fmt.Errorf("HMAC secret must be at least 32 bytes")
		}
		key, methods = config.HMACSecret, []string{"HS256", "HS384", "HS512"}
	default:
		return nil, fmt.Errorf("unsupported public key type %T", config.PublicKey)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTAuthenticator{
		key:     key,
		methods: methods,
		parser:  jwt.NewParser(opts...),
	}, nil
}

// LoadPublicKeyPEM reads a PKIX public key from a PEM file.
func LoadPublicKeyPEM(path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// AuthenticateHTTP authenticates an HTTP request using a JWT token.
func (a *JWTAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	identity, err := a.validate(bearerToken(r.Header.Get("Authorization")))
	if err != nil {
		return nil, err
	}
	identity.Attributes["remote_addr"] = r.RemoteAddr
	return identity, nil
}

// AuthenticateGRPC authenticates a gRPC request using a JWT token from metadata.
func (a *JWTAuthenticator) AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Identity, error) {
	return a.validate(bearerToken(firstMetadata(md, "authorization")))
}

func (a *JWTAuthenticator) validate(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrNoCredentials)
	}

	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token is not valid", ErrInvalidCredentials)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidCredentials)
	}

	identity := &Identity{
		Subject:    sub,
		Claims:     make(map[string]interface{}, len(claims)),
		Attributes: map[string]string{"auth_method": "jwt"},
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}
	if role, ok := claims["role"].(string); ok {
		identity.Claims["roles"] = []string{role}
	}
	return identity, nil
}

// Name returns the authenticator name.
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}
