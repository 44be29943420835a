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
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/adapters/auth"
)

func TestCreateAuthenticator_Disabled(t *testing.T) {
	cfg := &AuthConfig{Enabled: false, Type: "apikey"}

	a, err := cfg.CreateAuthenticator()
	if err != nil {
		t.Fatalf("CreateAuthenticator() error = %v", err)
	}
	if _, ok := a.(*auth.NoOpAuthenticator); !ok {
		t.Errorf("CreateAuthenticator() = %T, want *auth.NoOpAuthenticator", a)
	}
}

func TestCreateAuthenticator_Types(t *testing.T) {
	secret := strings.Repeat("s", 32)
	tests := []struct {
		name string
		cfg  AuthConfig
		want string
	}{
		{"noop", AuthConfig{Enabled: true, Type: "noop"}, "noop"},
		{"none", AuthConfig{Enabled: true, Type: "none"}, "noop"},
		{"apikey", AuthConfig{Enabled: true, Type: "apikey", APIKeys: []APIKeyConfig{{Key: "k1"}}}, "apikey"},
		{"jwt", AuthConfig{Enabled: true, Type: "jwt", JWT: JWTConfig{Secret: secret}}, "jwt"},
		{"mtls", AuthConfig{Enabled: true, Type: "mtls"}, "mtls"},
		{"chain", AuthConfig{
			Enabled: true,
			Type:    "chain",
			APIKeys: []APIKeyConfig{{Key: "k1"}},
			JWT:     JWTConfig{Secret: secret},
		}, "chain(apikey,jwt)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := tt.cfg.CreateAuthenticator()
			if err != nil {
				t.Fatalf("CreateAuthenticator() error = %v", err)
			}
			if a.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", a.Name(), tt.want)
			}
		})
	}
}

func TestCreateAuthenticator_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  AuthConfig
	}{
		{"unknown type", AuthConfig{Enabled: true, Type: "kerberos"}},
		{"apikey without keys", AuthConfig{Enabled: true, Type: "apikey"}},
		{"jwt short secret", AuthConfig{Enabled: true, Type: "jwt", JWT: JWTConfig{Secret: "short"}}},
		{"jwt missing key file", AuthConfig{Enabled: true, Type: "jwt", JWT: JWTConfig{PublicKeyFile: "/nonexistent.pem"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.CreateAuthenticator(); err == nil {
				t.Error("CreateAuthenticator() error = nil")
			}
		})
	}
}

func TestCreateAuthenticator_APIKeyIdentity(t *testing.T) {
	cfg := &AuthConfig{
		Enabled: true,
		Type:    "apikey",
		APIKeys: []APIKeyConfig{{Key: "ops-key", Subject: "ops", Roles: []string{"admin"}}},
	}
	a, err := cfg.CreateAuthenticator()
	if err != nil {
		t.Fatalf("CreateAuthenticator() error = %v", err)
	}

	req := httptest.NewRequest("POST", "/v1/shamir/secret/split", nil)
	req.Header.Set("Authorization", "Bearer ops-key")
	identity, err := a.AuthenticateHTTP(req)
	if err != nil {
		t.Fatalf("AuthenticateHTTP() error = %v", err)
	}
	if identity.Subject != "ops" || !identity.HasRole("admin") {
		t.Errorf("identity = %+v", identity)
	}

	req.Header.Set("Authorization", "Bearer OPS-KEY")
	if _, err := a.AuthenticateHTTP(req); err == nil {
		t.Error("API keys must be case sensitive")
	}
}

func TestLoadAPIKeyFile(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "api_keys.json")
	content := `[
  {"api_key": "db_fresh", "created_at": "2025-05-30T10:00:00+00:00"},
  {"api_key": "db_naive", "created_at": "2025-05-01T10:00:00.123456"},
  {"api_key": "db_old", "created_at": "2024-01-01T00:00:00+00:00"},
  {"api_key": "db_bad_date", "created_at": "yesterday"},
  {"api_key": "", "created_at": "2025-05-30T10:00:00+00:00"}
]`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	records, err := LoadAPIKeyFile(path, 90, now)
	if err != nil {
		t.Fatalf("LoadAPIKeyFile() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2: %+v", len(records), records)
	}
	if records[0].APIKey != "db_fresh" || records[1].APIKey != "db_naive" {
		t.Errorf("records = %+v", records)
	}

	all, err := LoadAPIKeyFile(path, 0, now)
	if err != nil {
		t.Fatalf("LoadAPIKeyFile() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("zero retention kept %d records, want 3", len(all))
	}

	missing, err := LoadAPIKeyFile(filepath.Join(t.TempDir(), "none.json"), 90, now)
	if err != nil || len(missing) != 0 {
		t.Errorf("missing file = %v, %v; want no records", missing, err)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadAPIKeyFile(path, 90, now); err == nil {
		t.Error("LoadAPIKeyFile() of invalid JSON should fail")
	}
}

func TestCreateAuthenticator_APIKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.json")
	created := time.Now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(path, []byte(`[{"api_key":"db_file","created_at":"`+created+`"}]`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := &AuthConfig{Enabled: true, Type: "apikey", APIKeysFile: path, APIKeyRetentionDays: 90}
	a, err := cfg.CreateAuthenticator()
	if err != nil {
		t.Fatalf("CreateAuthenticator() error = %v", err)
	}

	req := httptest.NewRequest("GET", "/v1/shamir/schemes", nil)
	req.Header.Set("Authorization", "Bearer db_file")
	if _, err := a.AuthenticateHTTP(req); err != nil {
		t.Errorf("AuthenticateHTTP() error = %v", err)
	}

	empty := &AuthConfig{Enabled: true, Type: "apikey", APIKeysFile: filepath.Join(t.TempDir(), "none.json")}
	if _, err := empty.CreateAuthenticator(); err == nil {
		t.Error("CreateAuthenticator() with no usable keys should fail")
	}
}
