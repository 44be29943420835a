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

// Package testutil issues throwaway certificates and keys for tests.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestCertificate is a generated certificate with its key.
type TestCertificate struct {
	Cert    *x509.Certificate
	Key     *ecdsa.PrivateKey
	CertPEM []byte
	KeyPEM  []byte

	// TLSCert is nil for CA certificates.
	TLSCert *tls.Certificate
}

// GenerateTestCA generates a self-signed P-256 CA valid for a day.
func GenerateTestCA() (*TestCertificate, error) {
	template := &x509.Certificate{
		Subject:               pkix.Name{Organization: []string{"databox test"}, CommonName: "databox test CA"},
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	return issue(template, nil)
}

// GenerateTestServerCert issues a server certificate for dnsNames,
// defaulting to localhost.
func GenerateTestServerCert(ca *TestCertificate, dnsNames ...string) (*TestCertificate, error) {
	if len(dnsNames) == 0 {
		dnsNames = []string{"localhost"}
	}
	template := &x509.Certificate{
		Subject:     pkix.Name{CommonName: dnsNames[0]},
		DNSNames:    dnsNames,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	return issue(template, ca)
}

// GenerateTestClientCert issues a client certificate with the given common
// name.
func GenerateTestClientCert(ca *TestCertificate, commonName string) (*TestCertificate, error) {
	if commonName == "" {
		commonName = "test-client"
	}
	template := &x509.Certificate{
		Subject:     pkix.Name{CommonName: commonName},
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	return issue(template, ca)
}

func issue(template *x509.Certificate, ca *TestCertificate) (*TestCertificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	template.SerialNumber = serial
	template.NotBefore = time.Now().Add(-time.Minute)
	template.NotAfter = time.Now().Add(24 * time.Hour)

	parent, signer := template, key
	if ca != nil {
		parent, signer = ca.Cert, ca.Key
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	out := &TestCertificate{
		Cert:    cert,
		Key:     key,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}
	if ca != nil {
		pair, err := tls.X509KeyPair(out.CertPEM, out.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS certificate: %w", err)
		}
		out.TLSCert = &pair
	}
	return out, nil
}

// TLSFiles are PEM files written by WriteServerTLS.
type TLSFiles struct {
	CAFile   string
	CertFile string
	KeyFile  string
	CA       *TestCertificate
	Server   *TestCertificate
}

// WriteServerTLS writes a CA and a localhost server certificate into a
// temporary directory removed when the test ends.
func WriteServerTLS(t testing.TB) *TLSFiles {
	t.Helper()

	ca, err := GenerateTestCA()
	if err != nil {
		t.Fatalf("failed to generate CA: %v", err)
	}
	server, err := GenerateTestServerCert(ca, "localhost")
	if err != nil {
		t.Fatalf("failed to generate server certificate: %v", err)
	}

	dir := t.TempDir()
	files := &TLSFiles{
		CAFile:   filepath.Join(dir, "ca.pem"),
		CertFile: filepath.Join(dir, "server.pem"),
		KeyFile:  filepath.Join(dir, "server-key.pem"),
		CA:       ca,
		Server:   server,
	}
	for path, data := range map[string][]byte{
		files.CAFile:   ca.CertPEM,
		files.CertFile: server.CertPEM,
		files.KeyFile:  server.KeyPEM,
	} {
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return files
}

// CertPool returns a pool trusting ca.
func CertPool(ca *TestCertificate) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	return pool
}
