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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// MTLSAuthenticator identifies callers by their verified client
// certificate. The TLS layer performs chain verification; this adapter only
// maps the leaf certificate to an Identity.
type MTLSAuthenticator struct {
	allowedSubjects map[string]struct{}
}

// MTLSConfig configures the mTLS authenticator
type MTLSConfig struct {
	// AllowedSubjects restricts access to these certificate subjects.
	// Empty allows any verified client.
	AllowedSubjects []string
}

// NewMTLSAuthenticator creates a new mTLS authenticator
func NewMTLSAuthenticator(config *MTLSConfig) *MTLSAuthenticator {
	a := &MTLSAuthenticator{allowedSubjects: make(map[string]struct{})}
	if config != nil {
		for _, s := range config.AllowedSubjects {
			a.allowedSubjects[s] = struct{}{}
		}
	}
	return a
}

// AuthenticateHTTP authenticates an HTTP request using the client certificate
func (a *MTLSAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	identity, err := a.fromState(r.TLS)
	if err != nil {
		return nil, err
	}
	identity.Attributes["remote_addr"] = r.RemoteAddr
	return identity, nil
}

// AuthenticateGRPC authenticates a gRPC request using the client certificate from peer info
func (a *MTLSAuthenticator) AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Identity, error) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no peer information", ErrNoCredentials)
	}
	tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return nil, fmt.Errorf("%w: connection is not TLS", ErrNoCredentials)
	}
	identity, err := a.fromState(&tlsInfo.State)
	if err != nil {
		return nil, err
	}
	identity.Attributes["remote_addr"] = p.Addr.String()
	return identity, nil
}

func (a *MTLSAuthenticator) fromState(state *tls.ConnectionState) (*Identity, error) {
	if state == nil || len(state.VerifiedChains) == 0 || len(state.VerifiedChains[0]) == 0 {
		return nil, fmt.Errorf("%w: no verified client certificate", ErrNoCredentials)
	}

	cert := state.VerifiedChains[0][0]
	subject := certSubject(cert)
	if len(a.allowedSubjects) > 0 {
		if _, ok := a.allowedSubjects[subject]; !ok {
			return nil, fmt.Errorf("%w: certificate subject %q not allowed", ErrInvalidCredentials, subject)
		}
	}

	return &Identity{
		Subject: subject,
		Claims: map[string]interface{}{
			"organization":        cert.Subject.Organization,
			"organizational_unit": cert.Subject.OrganizationalUnit,
			"dns_names":           cert.DNSNames,
		},
		Attributes: map[string]string{
			"auth_method": "mtls",
			"cert_serial": cert.SerialNumber.String(),
			"cert_issuer": cert.Issuer.String(),
		},
	}, nil
}

// certSubject prefers the common name, then the first DNS name, then the serial.
func certSubject(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName
	}
	if len(cert.DNSNames) > 0 {
		return cert.DNSNames[0]
	}
	return cert.SerialNumber.String()
}

// Name returns the authenticator name
func (a *MTLSAuthenticator) Name() string {
	return "mtls"
}
