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

package secretsharing

import (
	"fmt"
	"regexp"
	"sort"
)

// Built-in scheme names.
const (
	SchemeP521  = "p521"
	SchemeP1279 = "p1279"
	SchemeP4253 = "p4253"

	// DefaultScheme is used when no scheme is requested.
	DefaultScheme = SchemeP521
)

// schemeNamePattern keeps names safe to embed in the colon separated share format.
var schemeNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]{0,15}$`)

// Scheme is a named, versioned prime field. The name travels inside every
// encoded share so shares from different fields are never mixed silently.
type Scheme struct {
	name    string
	version int
	field   *Field
}

// NewScheme binds a name and version to a field. Built-in names are
// reserved. Schemes created this way are not registered: their shares are
// decoded with (*Scheme).DecodeShare, not the package level DecodeShare.
func NewScheme(name string, version int, f *Field) (*Scheme, error) {
	if !schemeNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid scheme name %q", ErrInvalidParameters, name)
	}
	if _, ok := builtinSchemes[name]; ok {
		return nil, fmt.Errorf("%w: scheme name %q is reserved", ErrInvalidParameters, name)
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: scheme version must be positive", ErrInvalidParameters)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidParameters)
	}
	return &Scheme{name: name, version: version, field: f}, nil
}

// Name returns the scheme identifier.
func (s *Scheme) Name() string { return s.name }

// Version returns the scheme version.
func (s *Scheme) Version() int { return s.version }

// Field returns the scheme's prime field.
func (s *Scheme) Field() *Field { return s.field }

// MaxSecretBytes returns the field capacity in bytes.
func (s *Scheme) MaxSecretBytes() int { return s.field.MaxSecretBytes() }

func (s *Scheme) equal(other *Scheme) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	return s.name == other.name && s.version == other.version && s.field.Equal(other.field)
}

var builtinSchemes = map[string]*Scheme{
	SchemeP521:  {name: SchemeP521, version: 1, field: newField(mersenne(521))},
	SchemeP1279: {name: SchemeP1279, version: 1, field: newField(mersenne(1279))},
	SchemeP4253: {name: SchemeP4253, version: 1, field: newField(mersenne(4253))},
}

// LookupScheme returns the built-in scheme with the given name.
func LookupScheme(name string) (*Scheme, error) {
	s, ok := builtinSchemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return s, nil
}

// Schemes returns the built-in schemes ordered by field size.
func Schemes() []*Scheme {
	out := make([]*Scheme, 0, len(builtinSchemes))
	for _, s := range builtinSchemes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].field.bits < out[j].field.bits
	})
	return out
}
