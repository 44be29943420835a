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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/crypto/rand"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"github.com/jeremyhahn/go-databox/pkg/validation"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// DATABOX_SERVER_REST_PORT or DATABOX_SHARING_DEFAULT_SCHEME.
const EnvPrefix = "DATABOX"

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Protocols ProtocolsConfig `yaml:"protocols" mapstructure:"protocols"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	TLS       TLSConfig       `yaml:"tls" mapstructure:"tls"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Health    HealthConfig    `yaml:"health" mapstructure:"health"`
	Sharing   SharingConfig   `yaml:"sharing" mapstructure:"sharing"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	RESTPort        int           `yaml:"rest_port" mapstructure:"rest_port"`
	GRPCPort        int           `yaml:"grpc_port" mapstructure:"grpc_port"`
	QUICPort        int           `yaml:"quic_port" mapstructure:"quic_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// ProtocolsConfig controls which protocols are enabled
type ProtocolsConfig struct {
	REST bool `yaml:"rest" mapstructure:"rest"`
	GRPC bool `yaml:"grpc" mapstructure:"grpc"`
	QUIC bool `yaml:"quic" mapstructure:"quic"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RateLimitConfig controls rate limiting
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig controls cross-origin requests to the REST API
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`

	// Port serves metrics on a dedicated listener. Zero mounts Path on
	// the REST router.
	Port int `yaml:"port" mapstructure:"port"`

	CollectInterval time.Duration `yaml:"collect_interval" mapstructure:"collect_interval"`
}

// HealthConfig controls health check endpoints
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	CheckTimeout time.Duration `yaml:"check_timeout" mapstructure:"check_timeout"`
}

// SharingConfig controls the secret sharing service
type SharingConfig struct {
	DefaultScheme  string        `yaml:"default_scheme" mapstructure:"default_scheme"`
	Schemes        []string      `yaml:"schemes" mapstructure:"schemes"`
	MaxSecretBytes int           `yaml:"max_secret_bytes" mapstructure:"max_secret_bytes"`
	MaxShares      int           `yaml:"max_shares" mapstructure:"max_shares"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	RNG            RNGConfig     `yaml:"rng" mapstructure:"rng"`
}

// RNGConfig selects the random source for share polynomials
type RNGConfig struct {
	Mode         string             `yaml:"mode" mapstructure:"mode"`
	FallbackMode string             `yaml:"fallback_mode" mapstructure:"fallback_mode"`
	TPM2         *rand.TPM2Config   `yaml:"tpm2,omitempty" mapstructure:"tpm2"`
	PKCS11       *rand.PKCS11Config `yaml:"pkcs11,omitempty" mapstructure:"pkcs11"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			RESTPort:        8080,
			GRPCPort:        9090,
			QUICPort:        8443,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Protocols: ProtocolsConfig{REST: true},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		TLS:       TLSConfig{MinVersion: "TLS1.2"},
		Auth: AuthConfig{
			Type:                "apikey",
			APIKeyRetentionDays: 90,
		},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 60},
		CORS:      CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
		Metrics: MetricsConfig{
			Enabled:         true,
			Path:            "/metrics",
			CollectInterval: 30 * time.Second,
		},
		Health: HealthConfig{Enabled: true, CheckTimeout: 5 * time.Second},
		Sharing: SharingConfig{
			DefaultScheme:  "p521",
			RequestTimeout: 10 * time.Second,
			RNG:            RNGConfig{Mode: string(rand.ModeAuto), FallbackMode: string(rand.ModeSoftware)},
		},
	}
}

// Load reads configuration from an optional YAML file and applies
// DATABOX_* environment overrides. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default for AutomaticEnv to reach it through
	// Unmarshal.
	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// setDefaults registers every leaf of cfg, flattened through its yaml
// tags, as a viper default.
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}
	flatten("", tree, v.SetDefault)
	return nil
}

func flatten(prefix string, tree map[string]interface{}, set func(string, interface{})) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok && len(sub) > 0 {
			flatten(key, sub, set)
			continue
		}
		set(key, val)
	}
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Protocols.REST && !validPort(c.Server.RESTPort) {
		errs = append(errs, fmt.Errorf("invalid REST port: %d", c.Server.RESTPort))
	}
	if c.Protocols.GRPC && !validPort(c.Server.GRPCPort) {
		errs = append(errs, fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort))
	}
	if c.Protocols.QUIC && !validPort(c.Server.QUICPort) {
		errs = append(errs, fmt.Errorf("invalid QUIC port: %d", c.Server.QUICPort))
	}
	if !c.Protocols.REST && !c.Protocols.GRPC && !c.Protocols.QUIC {
		errs = append(errs, errors.New("at least one protocol must be enabled"))
	}
	if c.Protocols.QUIC && !c.TLS.Enabled {
		errs = append(errs, errors.New("QUIC requires TLS to be enabled"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("invalid max_body_bytes: %d", c.Server.MaxBodyBytes))
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "":
	default:
		errs = append(errs, fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format))
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			errs = append(errs, errors.New("TLS cert_file is required when TLS is enabled"))
		}
		if c.TLS.KeyFile == "" {
			errs = append(errs, errors.New("TLS key_file is required when TLS is enabled"))
		}
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("invalid ratelimit requests_per_minute: %d", c.RateLimit.RequestsPerMinute))
	}

	if c.Metrics.Enabled {
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("invalid metrics path: %q", c.Metrics.Path))
		}
		if c.Metrics.Port != 0 && !validPort(c.Metrics.Port) {
			errs = append(errs, fmt.Errorf("invalid metrics port: %d", c.Metrics.Port))
		}
	}

	errs = append(errs, c.Sharing.validate()...)

	return errors.Join(errs...)
}

func (s *SharingConfig) validate() []error {
	var errs []error

	known := make(map[string]bool)
	for _, name := range threshold.AllSchemes() {
		known[name] = true
	}
	if err := validation.ValidateSchemeName(s.DefaultScheme); err != nil || (s.DefaultScheme != "" && !known[s.DefaultScheme]) {
		errs = append(errs, fmt.Errorf("invalid sharing default_scheme: %q", s.DefaultScheme))
	}
	for _, name := range s.Schemes {
		if !known[name] {
			errs = append(errs, fmt.Errorf("invalid sharing scheme: %q", name))
		}
	}
	if s.MaxSecretBytes < 0 {
		errs = append(errs, fmt.Errorf("invalid sharing max_secret_bytes: %d", s.MaxSecretBytes))
	}
	if s.MaxShares != 0 && (s.MaxShares < 2 || s.MaxShares > 65535) {
		errs = append(errs, fmt.Errorf("invalid sharing max_shares: %d (must be 2-65535)", s.MaxShares))
	}
	if s.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid sharing request_timeout: %s", s.RequestTimeout))
	}
	if _, err := rand.ParseMode(s.RNG.Mode); err != nil {
		errs = append(errs, fmt.Errorf("invalid sharing rng mode: %w", err))
	}
	if s.RNG.FallbackMode != "" {
		if _, err := rand.ParseMode(s.RNG.FallbackMode); err != nil {
			errs = append(errs, fmt.Errorf("invalid sharing rng fallback_mode: %w", err))
		}
	}
	return errs
}

// ServiceConfig converts the sharing section for threshold.NewService.
func (s *SharingConfig) ServiceConfig() *threshold.Config {
	return &threshold.Config{
		DefaultScheme:  s.DefaultScheme,
		Schemes:        s.Schemes,
		MaxSecretBytes: s.MaxSecretBytes,
		MaxShares:      s.MaxShares,
	}
}

// RandConfig converts the rng section for rand.NewResolver.
func (r *RNGConfig) RandConfig() (*rand.Config, error) {
	mode, err := rand.ParseMode(r.Mode)
	if err != nil {
		return nil, err
	}
	cfg := &rand.Config{
		Mode:         mode,
		TPM2Config:   r.TPM2,
		PKCS11Config: r.PKCS11,
	}
	if r.FallbackMode != "" {
		if cfg.FallbackMode, err = rand.ParseMode(r.FallbackMode); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoggerConfig converts the logging section for logger.NewSlogAdapter.
func (l *LoggingConfig) LoggerConfig() (*logger.SlogConfig, error) {
	level, err := logger.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	format := logger.FormatText
	if strings.EqualFold(l.Format, "json") {
		format = logger.FormatJSON
	}
	return &logger.SlogConfig{Level: level, Format: format}, nil
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}
