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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/adapters/auth"
)

// AuthConfig controls authentication of the /v1 API
type AuthConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Type is one of noop, apikey, jwt, mtls or chain. chain accepts an API
	// key or a JWT.
	Type string `yaml:"type" mapstructure:"type"`

	APIKeys []APIKeyConfig `yaml:"api_keys,omitempty" mapstructure:"api_keys"`

	// APIKeysFile is a JSON array of {"api_key", "created_at"} records.
	// Records older than APIKeyRetentionDays are ignored.
	APIKeysFile         string `yaml:"api_keys_file" mapstructure:"api_keys_file"`
	APIKeyRetentionDays int    `yaml:"api_key_retention_days" mapstructure:"api_key_retention_days"`

	JWT JWTConfig `yaml:"jwt" mapstructure:"jwt"`

	// AllowedSubjects restricts mTLS clients by certificate subject.
	AllowedSubjects []string `yaml:"allowed_subjects,omitempty" mapstructure:"allowed_subjects"`
}

// APIKeyConfig represents an API key and its associated identity
type APIKeyConfig struct {
	Key     string   `yaml:"key" mapstructure:"key"`
	Subject string   `yaml:"subject" mapstructure:"subject"`
	Roles   []string `yaml:"roles,omitempty" mapstructure:"roles"`
}

// JWTConfig controls JWT authentication
type JWTConfig struct {
	Secret        string        `yaml:"secret" mapstructure:"secret"`
	PublicKeyFile string        `yaml:"public_key_file" mapstructure:"public_key_file"`
	Issuer        string        `yaml:"issuer" mapstructure:"issuer"`
	Audience      string        `yaml:"audience" mapstructure:"audience"`
	Leeway        time.Duration `yaml:"leeway" mapstructure:"leeway"`
}

// Validate checks the auth section.
func (cfg *AuthConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Type {
	case "noop", "none", "", "mtls":
		return nil
	case "apikey":
		return cfg.validateAPIKeys()
	case "jwt":
		return cfg.validateJWT()
	case "chain":
		if err := cfg.validateAPIKeys(); err != nil {
			return err
		}
		return cfg.validateJWT()
	default:
		return fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}

func (cfg *AuthConfig) validateAPIKeys() error {
	if len(cfg.APIKeys) == 0 && cfg.APIKeysFile == "" {
		return errors.New("no API keys configured")
	}
	for i, k := range cfg.APIKeys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api_keys[%d]: key is required", i)
		}
	}
	if cfg.APIKeyRetentionDays < 0 {
		return fmt.Errorf("invalid api_key_retention_days: %d", cfg.APIKeyRetentionDays)
	}
	return nil
}

func (cfg *AuthConfig) validateJWT() error {
	if cfg.JWT.Secret == "" && cfg.JWT.PublicKeyFile == "" {
		return errors.New("JWT auth requires a secret or public_key_file")
	}
	return nil
}

// CreateAuthenticator builds the configured authenticator. Disabled auth
// yields a no-op authenticator.
func (cfg *AuthConfig) CreateAuthenticator() (auth.Authenticator, error) {
	if !cfg.Enabled {
		return auth.NewNoOpAuthenticator(), nil
	}

	switch cfg.Type {
	case "noop", "none", "":
		return auth.NewNoOpAuthenticator(), nil
	case "apikey":
		return cfg.createAPIKeyAuthenticator(time.Now())
	case "jwt":
		return cfg.createJWTAuthenticator()
	case "mtls":
		return auth.NewMTLSAuthenticator(&auth.MTLSConfig{AllowedSubjects: cfg.AllowedSubjects}), nil
	case "chain":
		apiKeys, err := cfg.createAPIKeyAuthenticator(time.Now())
		if err != nil {
			return nil, err
		}
		jwtAuth, err := cfg.createJWTAuthenticator()
		if err != nil {
			return nil, err
		}
		return auth.NewChainAuthenticator(apiKeys, jwtAuth), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}

func (cfg *AuthConfig) createAPIKeyAuthenticator(now time.Time) (*auth.APIKeyAuthenticator, error) {
	a := auth.NewAPIKeyAuthenticator(nil)
	for _, k := range cfg.APIKeys {
		subject := k.Subject
		if subject == "" {
			subject = "apikey"
		}
		identity := &auth.Identity{
			Subject:    subject,
			Claims:     make(map[string]interface{}),
			Attributes: make(map[string]string),
		}
		if len(k.Roles) > 0 {
			identity.Claims["roles"] = k.Roles
		}
		a.AddKey(k.Key, identity)
	}

	if cfg.APIKeysFile != "" {
		records, err := LoadAPIKeyFile(cfg.APIKeysFile, cfg.APIKeyRetentionDays, now)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			a.AddKey(r.APIKey, nil)
		}
	}

	if a.Len() == 0 {
		return nil, errors.New("no API keys configured")
	}
	return a, nil
}

func (cfg *AuthConfig) createJWTAuthenticator() (*auth.JWTAuthenticator, error) {
	jwtConfig := &auth.JWTConfig{
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
	}
	if cfg.JWT.PublicKeyFile != "" {
		key, err := auth.LoadPublicKeyPEM(cfg.JWT.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		jwtConfig.PublicKey = key
	} else {
		jwtConfig.HMACSecret = []byte(cfg.JWT.Secret)
	}
	return auth.NewJWTAuthenticator(jwtConfig)
}

// APIKeyRecord is one entry of an API key file.
type APIKeyRecord struct {
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// LoadAPIKeyFile reads an API key file and drops records older than
// retentionDays. A missing file yields no keys. Zero retentionDays keeps
// every record.
func LoadAPIKeyFile(path string, retentionDays int, now time.Time) ([]APIKeyRecord, error) {
	// #nosec G304 - API key file path is provided by admin
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read API key file: %w", err)
	}

	var raw []struct {
		APIKey    string `json:"api_key"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse API key file: %w", err)
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	records := make([]APIKeyRecord, 0, len(raw))
	for _, r := range raw {
		if r.APIKey == "" {
			continue
		}
		created, ok := parseCreatedAt(r.CreatedAt)
		if !ok {
			continue
		}
		if retentionDays > 0 && created.Before(cutoff) {
			continue
		}
		records = append(records, APIKeyRecord{APIKey: r.APIKey, CreatedAt: created})
	}
	return records, nil
}

// parseCreatedAt accepts RFC 3339 and naive ISO 8601 timestamps, the
// latter read as UTC.
func parseCreatedAt(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
