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

package threshold

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
	"github.com/jeremyhahn/go-databox/pkg/metrics"
)

// Config configures a Service.
type Config struct {
	// DefaultScheme is used when a split request names none. Defaults to
	// p521.
	DefaultScheme string

	// MaxSecretBytes caps secrets for every scheme. Zero leaves prime
	// schemes at their field capacity and byte schemes at
	// DefaultByteSchemeMaxSecret. Prime schemes never exceed their
	// capacity.
	MaxSecretBytes int

	// MaxShares caps N. Zero means secretsharing.DefaultMaxShares; gf256 is
	// additionally limited to 255.
	MaxShares int

	// Random supplies randomness to the prime and gf256 schemes. Defaults
	// to crypto/rand.Reader.
	Random io.Reader

	// Logger receives operation logs. Defaults to a discarding logger.
	Logger logger.Logger

	// Schemes restricts the registered schemes. Empty registers all of
	// AllSchemes.
	Schemes []string
}

// SplitRequest asks for a secret to be split.
type SplitRequest struct {
	Secret    []byte
	Threshold int
	Shares    int

	// Scheme defaults to the service default when empty.
	Scheme string
}

// SplitResult carries the encoded shares of one split.
type SplitResult struct {
	Shares    []string
	Threshold int
	Count     int
	Scheme    string
	Version   int
}

// CombineResult carries a recovered secret. Callers should wipe Secret once
// it has been rendered.
type CombineResult struct {
	Secret  []byte
	Scheme  string
	Version int
}

// Service dispatches split and combine requests to registered schemes.
// It holds only immutable state after construction and is safe for
// concurrent use.
type Service struct {
	schemes       map[string]Scheme
	order         []string
	defaultScheme string
	logger        logger.Logger
}

// NewService builds a service from cfg. A nil cfg selects every default.
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxSecretBytes < 0 {
		return nil, fmt.Errorf("%w: max secret bytes must not be negative", ErrInvalidParameters)
	}

	names := cfg.Schemes
	if len(names) == 0 {
		names = AllSchemes()
	}

	defaultScheme := cfg.DefaultScheme
	if defaultScheme == "" {
		defaultScheme = secretsharing.DefaultScheme
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	svc := &Service{
		schemes:       make(map[string]Scheme, len(names)),
		order:         make([]string, 0, len(names)),
		defaultScheme: defaultScheme,
		logger:        log,
	}
	for _, name := range names {
		if _, ok := svc.schemes[name]; ok {
			continue
		}
		s, err := newScheme(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("scheme %s: %w", name, err)
		}
		svc.schemes[name] = s
		svc.order = append(svc.order, name)
	}

	if _, ok := svc.schemes[defaultScheme]; !ok {
		return nil, fmt.Errorf("%w: %w: default scheme %q is not registered",
			ErrInvalidParameters, ErrUnknownScheme, defaultScheme)
	}
	return svc, nil
}

// DefaultScheme returns the scheme used when a request names none.
func (s *Service) DefaultScheme() string { return s.defaultScheme }

// Scheme returns a registered scheme.
func (s *Service) Scheme(name string) (Scheme, error) {
	scheme, ok := s.schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return scheme, nil
}

// Schemes describes the registered schemes in registration order.
func (s *Service) Schemes() []SchemeInfo {
	infos := make([]SchemeInfo, 0, len(s.order))
	for _, name := range s.order {
		scheme := s.schemes[name]
		infos = append(infos, SchemeInfo{
			Name:           scheme.Name(),
			Version:        scheme.Version(),
			Field:          scheme.Field(),
			MaxSecretBytes: scheme.MaxSecretBytes(),
			MaxShares:      scheme.MaxShares(),
			Default:        name == s.defaultScheme,
		})
	}
	return infos
}

// Split divides req.Secret into req.Shares shares, any req.Threshold of
// which recover it. The secret itself is not retained.
func (s *Service) Split(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	start := time.Now()
	name := req.Scheme
	if name == "" {
		name = s.defaultScheme
	}

	result, err := s.split(ctx, name, req)
	s.record(metrics.OpSplit, name, start, err)

	log := logger.FromContext(ctx, s.logger)
	if err != nil {
		log.Warn("split failed",
			logger.String("scheme", name),
			logger.Int("threshold", req.Threshold),
			logger.Int("shares", req.Shares),
			logger.String("error_type", ErrorKind(err)))
		return nil, err
	}

	metrics.RecordSizes(metrics.OpSplit, name, len(req.Secret), result.Count)
	log.Info("secret split",
		logger.String("scheme", name),
		logger.Int("threshold", result.Threshold),
		logger.Int("shares", result.Count),
		logger.Duration("duration", time.Since(start)))
	return result, nil
}

func (s *Service) split(ctx context.Context, name string, req SplitRequest) (*SplitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scheme, err := s.Scheme(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	shares, err := scheme.Split(req.Secret, req.Threshold, req.Shares)
	if err != nil {
		return nil, err
	}
	return &SplitResult{
		Shares:    shares,
		Threshold: req.Threshold,
		Count:     len(shares),
		Scheme:    scheme.Name(),
		Version:   scheme.Version(),
	}, nil
}

// Combine recovers a secret. The scheme is detected from the share format
// and every share must use the same one. The original threshold is not
// encoded in the shares, so fewer than threshold shares usually fail with
// ErrDecode but may produce a wrong secret.
func (s *Service) Combine(ctx context.Context, shares []string) (*CombineResult, error) {
	start := time.Now()

	result, name, err := s.combine(ctx, shares)
	if name == "" {
		name = "unknown"
	}
	s.record(metrics.OpCombine, name, start, err)

	log := logger.FromContext(ctx, s.logger)
	if err != nil {
		log.Warn("combine failed",
			logger.String("scheme", name),
			logger.Int("shares", len(shares)),
			logger.String("error_type", ErrorKind(err)))
		return nil, err
	}

	metrics.RecordSizes(metrics.OpCombine, name, len(result.Secret), len(shares))
	log.Info("secret combined",
		logger.String("scheme", name),
		logger.Int("shares", len(shares)),
		logger.Duration("duration", time.Since(start)))
	return result, nil
}

func (s *Service) combine(ctx context.Context, shares []string) (*CombineResult, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if len(shares) < 2 {
		return nil, "", fmt.Errorf("%w: need at least 2 shares, got %d", ErrInsufficientShares, len(shares))
	}

	name, err := detectScheme(shares)
	if err != nil {
		return nil, "", err
	}

	scheme, ok := s.schemes[name]
	if !ok {
		return nil, name, fmt.Errorf("%w: %w: %q", ErrMalformedShare, ErrUnknownScheme, name)
	}

	secret, err := scheme.Combine(shares)
	if err != nil {
		return nil, name, err
	}
	return &CombineResult{Secret: secret, Scheme: scheme.Name(), Version: scheme.Version()}, name, nil
}

// detectScheme names the scheme all shares belong to.
func detectScheme(shares []string) (string, error) {
	var name string
	for i, share := range shares {
		current, err := shareScheme(share)
		if err != nil {
			return "", fmt.Errorf("share %d: %w", i, err)
		}
		if i == 0 {
			name = current
			continue
		}
		if current != name {
			return "", fmt.Errorf("%w: share %d uses scheme %s, expected %s",
				ErrMalformedShare, i, current, name)
		}
	}
	return name, nil
}

func shareScheme(share string) (string, error) {
	switch {
	case share == "":
		return "", fmt.Errorf("%w: empty share", ErrMalformedShare)
	case secretsharing.IsShare(share):
		parts := strings.SplitN(share, ":", 3)
		if len(parts) < 3 || parts[1] == "" {
			return "", fmt.Errorf("%w: expected %s:<scheme>:<x>:<y>", ErrMalformedShare, secretsharing.SharePrefix)
		}
		return parts[1], nil
	case isGF256Share(share):
		return SchemeGF256, nil
	case isSSSAShare(share):
		return SchemeSSSA, nil
	default:
		return "", fmt.Errorf("%w: unrecognised share format", ErrMalformedShare)
	}
}

// SelfTest splits and recombines a fixed secret under every registered
// scheme, using a different subset of shares than a naive prefix.
func (s *Service) SelfTest(ctx context.Context) error {
	start := time.Now()
	var failed error
	for _, name := range s.order {
		if err := ctx.Err(); err != nil {
			failed = err
			break
		}
		if err := selfTestScheme(s.schemes[name]); err != nil {
			failed = fmt.Errorf("scheme %s: %w", name, err)
			break
		}
	}
	s.record(metrics.OpSelfTest, "all", start, failed)
	return failed
}

var selfTestSecret = []byte("databox self-test \x00\x01\xfe\xff")

func selfTestScheme(scheme Scheme) error {
	secret := selfTestSecret
	if limit := scheme.MaxSecretBytes(); len(secret) > limit {
		secret = secret[:limit]
	}
	total := 3
	if scheme.MaxShares() < total {
		total = scheme.MaxShares()
	}

	shares, err := scheme.Split(secret, 2, total)
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	recovered, err := scheme.Combine(shares[len(shares)-2:])
	if err != nil {
		return fmt.Errorf("combine: %w", err)
	}
	defer secure.Wipe(recovered)

	if !bytes.Equal(recovered, secret) {
		return errors.New("recovered secret does not match")
	}
	return nil
}

func (s *Service) record(operation, scheme string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(operation, scheme, ErrorKind(err))
	}
	metrics.RecordOperation(operation, scheme, status, time.Since(start).Seconds())
}
