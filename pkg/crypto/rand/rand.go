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

// Package rand supplies the entropy source used to draw polynomial
// coefficients when splitting secrets.
//
// Coefficient randomness is the whole security of Shamir's scheme: a
// predictable coefficient reveals the secret from fewer than K shares. Every
// source in this package is therefore a cryptographic one. There is no seeded
// or deterministic mode; tests that need reproducible output inject their own
// io.Reader into the engine directly.
//
// # Sources
//
//   - Software: the operating system CSPRNG via crypto/rand (always available)
//   - TPM2: TPM 2.0 GetRandom (requires the tpm2 build tag)
//   - PKCS11: C_GenerateRandom on an HSM slot (requires the pkcs11 build tag)
//   - Auto: the best available of PKCS#11, TPM2 and software
//
// A FallbackMode may be configured so that a failing hardware source does
// not fail a split request:
//
//	resolver, err := rand.NewResolver(&rand.Config{
//	    Mode:         rand.ModeTPM2,
//	    FallbackMode: rand.ModeSoftware,
//	})
//
// Every Resolver is an io.Reader and is safe for concurrent use.
package rand

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto selects the best available source.
	// Preference order: PKCS#11 > TPM2 > Software
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand.
	ModeSoftware Mode = "software"

	// ModeTPM2 uses Trusted Platform Module 2.0 hardware RNG.
	ModeTPM2 Mode = "tpm2"

	// ModePKCS11 uses PKCS#11 hardware security module RNG.
	ModePKCS11 Mode = "pkcs11"
)

var (
	// ErrUnknownMode is returned for an unrecognised Mode.
	ErrUnknownMode = errors.New("unknown RNG mode")

	// ErrNotCompiled is returned when a hardware source was excluded by build tags.
	ErrNotCompiled = errors.New("RNG source support not compiled")

	// ErrClosed is returned by a resolver after Close.
	ErrClosed = errors.New("RNG resolver closed")

	// ErrSelfTestFailed indicates a source produced obviously broken output.
	ErrSelfTestFailed = errors.New("RNG self-test failed")
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeSoftware, ModeTPM2, ModePKCS11:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownMode, s)
	}
}

// Config contains RNG configuration.
type Config struct {
	// Mode specifies the primary RNG source to use.
	// Defaults to ModeAuto if not specified.
	Mode Mode

	// FallbackMode is used when the primary source cannot be opened or a
	// read from it fails. Empty disables fallback.
	FallbackMode Mode

	// TPM2Config contains TPM2-specific configuration.
	TPM2Config *TPM2Config

	// PKCS11Config contains PKCS#11-specific configuration.
	PKCS11Config *PKCS11Config
}

// TPM2Config contains configuration for TPM2 RNG.
type TPM2Config struct {
	// Device path to the TPM device (default: "/dev/tpmrm0")
	Device string `yaml:"device" mapstructure:"device"`

	// MaxRequestSize limits the bytes requested per GetRandom call.
	// Default: 32
	MaxRequestSize int `yaml:"max_request_size" mapstructure:"max_request_size"`

	// UseSimulator connects to a TCP simulator instead of Device.
	UseSimulator bool `yaml:"use_simulator" mapstructure:"use_simulator"`

	// SimulatorHost defaults to localhost.
	SimulatorHost string `yaml:"simulator_host" mapstructure:"simulator_host"`

	// SimulatorPort defaults to 2321 (swtpm). The platform port is SimulatorPort+1.
	SimulatorPort int `yaml:"simulator_port" mapstructure:"simulator_port"`
}

// PKCS11Config contains configuration for PKCS#11 RNG.
type PKCS11Config struct {
	// Module path to the PKCS#11 library (e.g., /usr/lib/softhsm/libsofthsm2.so)
	Module string `yaml:"module" mapstructure:"module"`

	// SlotID specifies the PKCS#11 slot containing the RNG
	SlotID uint `yaml:"slot_id" mapstructure:"slot_id"`

	// PIN authenticates the session when non-empty.
	PIN string `yaml:"pin" mapstructure:"pin"`
}

// Resolver is a cryptographic random source. It implements io.Reader so it
// can be handed to anything that accepts crypto/rand.Reader.
type Resolver interface {
	io.Reader

	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Mode reports the source actually serving reads.
	Mode() Mode

	// Available returns true if the source is ready.
	Available() bool

	// Close releases any device handles.
	Close() error
}

// NewResolver creates a resolver from cfg. A nil cfg selects auto mode.
func NewResolver(cfg *Config) (Resolver, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeAuto
	}

	primary, err := newModeResolver(mode, cfg)
	if cfg.FallbackMode == "" || cfg.FallbackMode == mode {
		return primary, err
	}

	fallback, fbErr := newModeResolver(cfg.FallbackMode, cfg)
	if err != nil {
		if fbErr != nil {
			return nil, fmt.Errorf("primary %s: %w; fallback %s: %v", mode, err, cfg.FallbackMode, fbErr)
		}
		return fallback, nil
	}
	if fbErr != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("fallback %s: %w", cfg.FallbackMode, fbErr)
	}
	return &chainResolver{primary: primary, fallback: fallback}, nil
}

func newModeResolver(mode Mode, cfg *Config) (Resolver, error) {
	switch mode {
	case ModeAuto:
		return newAutoResolver(cfg)
	case ModeSoftware:
		return newSoftwareResolver(), nil
	case ModeTPM2:
		return newTPM2Resolver(cfg.TPM2Config)
	case ModePKCS11:
		return newPKCS11Resolver(cfg.PKCS11Config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

// SelfTest draws two blocks from r and fails if either is all zeros or both
// are identical. It catches dead or stuck sources, not weak ones.
func SelfTest(r io.Reader) error {
	a := make([]byte, 32)
	b := make([]byte, 32)
	if _, err := io.ReadFull(r, a); err != nil {
		return fmt.Errorf("%w: %w", ErrSelfTestFailed, err)
	}
	if _, err := io.ReadFull(r, b); err != nil {
		return fmt.Errorf("%w: %w", ErrSelfTestFailed, err)
	}

	zero := make([]byte, 32)
	if bytes.Equal(a, zero) || bytes.Equal(b, zero) {
		return fmt.Errorf("%w: source returned zeros", ErrSelfTestFailed)
	}
	if bytes.Equal(a, b) {
		return fmt.Errorf("%w: source repeated output", ErrSelfTestFailed)
	}
	return nil
}

// readFrom fills p from a byte-slice producing source.
func readFrom(p []byte, source func(n int) ([]byte, error)) (int, error) {
	data, err := source(len(p))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	for i := range data {
		data[i] = 0
	}
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// softwareResolver uses crypto/rand from the Go standard library.
type softwareResolver struct{}

var _ Resolver = (*softwareResolver)(nil)

func newSoftwareResolver() Resolver {
	return &softwareResolver{}
}

func (s *softwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *softwareResolver) Read(p []byte) (int, error) {
	return rand.Read(p)
}

func (s *softwareResolver) Mode() Mode { return ModeSoftware }

func (s *softwareResolver) Available() bool { return true }

func (s *softwareResolver) Close() error { return nil }
