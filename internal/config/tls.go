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

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// TLSConfig controls TLS for the REST, gRPC and QUIC listeners
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`

	// ClientAuth is one of none, request, require, verify or
	// require_and_verify.
	ClientAuth string   `yaml:"client_auth" mapstructure:"client_auth"`
	ClientCAs  []string `yaml:"client_cas" mapstructure:"client_cas"`

	MinVersion   string   `yaml:"min_version" mapstructure:"min_version"`
	CipherSuites []string `yaml:"cipher_suites" mapstructure:"cipher_suites"`
}

// LoadTLSConfig builds a server tls.Config. It returns nil when TLS is
// disabled.
func (cfg *TLSConfig) LoadTLSConfig() (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	minVersion, err := parseTLSVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion defaults to TLS 1.2 and older versions are rejected
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}

	if len(cfg.CipherSuites) > 0 {
		suites, err := parseCipherSuites(cfg.CipherSuites)
		if err != nil {
			return nil, err
		}
		tlsConfig.CipherSuites = suites
	}

	clientAuth, err := parseClientAuthType(cfg.ClientAuth)
	if err != nil {
		return nil, err
	}
	tlsConfig.ClientAuth = clientAuth

	if len(cfg.ClientCAs) > 0 {
		pool, err := loadCertPool(cfg.ClientCAs)
		if err != nil {
			return nil, fmt.Errorf("failed to load client CA certificates: %w", err)
		}
		tlsConfig.ClientCAs = pool
	}
	return tlsConfig, nil
}

// parseTLSVersion accepts TLS1.2 (the default) and TLS1.3.
func parseTLSVersion(version string) (uint16, error) {
	switch strings.ToUpper(strings.ReplaceAll(version, " ", "")) {
	case "", "TLS1.2", "1.2":
		return tls.VersionTLS12, nil
	case "TLS1.3", "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS min_version: %s", version)
	}
}

func parseClientAuthType(authType string) (tls.ClientAuthType, error) {
	switch authType {
	case "none", "":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require":
		return tls.RequireAnyClientCert, nil
	case "verify":
		return tls.VerifyClientCertIfGiven, nil
	case "require_and_verify":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("unknown client auth type: %s", authType)
	}
}

func parseCipherSuites(names []string) ([]uint16, error) {
	known := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		known[s.Name] = s.ID
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown or insecure cipher suite: %s", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loadCertPool(files []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, path := range files {
		// #nosec G304 - CA file paths from trusted config
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", path)
		}
	}
	return pool, nil
}
