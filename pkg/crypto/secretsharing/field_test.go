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
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toyField(t *testing.T) *Field {
	t.Helper()
	f, err := NewField(big.NewInt(257))
	require.NoError(t, err)
	return f
}

func TestNewField(t *testing.T) {
	tests := []struct {
		name    string
		prime   *big.Int
		wantErr bool
	}{
		{name: "toy prime", prime: big.NewInt(257)},
		{name: "small prime", prime: big.NewInt(3)},
		{name: "mersenne 521", prime: mersenne(521)},
		{name: "mersenne 1279", prime: mersenne(1279)},
		{name: "nil prime", prime: nil, wantErr: true},
		{name: "two", prime: big.NewInt(2), wantErr: true},
		{name: "negative", prime: big.NewInt(-7), wantErr: true},
		{name: "composite", prime: big.NewInt(256), wantErr: true},
		{name: "composite mersenne", prime: mersenne(522), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewField(tt.prime)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidParameters)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, f.Prime().Cmp(tt.prime))
		})
	}
}

func TestField_Sizes(t *testing.T) {
	tests := []struct {
		scheme   string
		bits     int
		byteLen  int
		capacity int
	}{
		{SchemeP521, 521, 66, 64},
		{SchemeP1279, 1279, 160, 159},
		{SchemeP4253, 4253, 532, 531},
	}

	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			s, err := LookupScheme(tt.scheme)
			require.NoError(t, err)
			assert.Equal(t, tt.bits, s.Field().Bits())
			assert.Equal(t, tt.byteLen, s.Field().ByteLen())
			assert.Equal(t, tt.capacity, s.MaxSecretBytes())
		})
	}
}

func TestField_PrimeIsCopied(t *testing.T) {
	f := toyField(t)
	p := f.Prime()
	p.SetInt64(11)
	assert.Equal(t, int64(257), f.Prime().Int64())
}

func TestField_Arithmetic(t *testing.T) {
	f := toyField(t)
	n := big.NewInt

	assert.Equal(t, int64(3), f.Add(n(130), n(130)).Int64())
	assert.Equal(t, int64(255), f.Sub(n(3), n(5)).Int64())
	assert.Equal(t, int64(0), f.Sub(n(5), n(5)).Int64())
	assert.Equal(t, int64(1), f.Mul(n(256), n(256)).Int64())
	assert.Equal(t, int64(252), f.Neg(n(5)).Int64())
	assert.Equal(t, int64(0), f.Neg(n(0)).Int64())
	assert.Equal(t, int64(1), f.Reduce(n(-256)).Int64())
}

func TestField_ArgumentsNotModified(t *testing.T) {
	f := toyField(t)
	a := big.NewInt(300)
	b := big.NewInt(400)

	f.Add(a, b)
	f.Sub(a, b)
	f.Mul(a, b)
	_, err := f.Div(a, b)
	require.NoError(t, err)

	assert.Equal(t, int64(300), a.Int64())
	assert.Equal(t, int64(400), b.Int64())
}

func TestField_Inverse(t *testing.T) {
	f := toyField(t)

	for a := int64(1); a < 257; a++ {
		inv, err := f.Inverse(big.NewInt(a))
		require.NoError(t, err)
		assert.Equal(t, int64(1), f.Mul(big.NewInt(a), inv).Int64(), "a=%d", a)
	}
}

func TestField_InverseOfZero(t *testing.T) {
	f := toyField(t)

	_, err := f.Inverse(big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroInverse)

	// p itself reduces to zero
	_, err = f.Inverse(big.NewInt(257))
	assert.ErrorIs(t, err, ErrZeroInverse)

	_, err = f.Div(big.NewInt(5), big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroInverse)
}

func TestField_InverseLargeField(t *testing.T) {
	s, err := LookupScheme(SchemeP521)
	require.NoError(t, err)
	f := s.Field()

	a, err := f.Random(newDeterministicReader("inverse"))
	require.NoError(t, err)
	require.NotZero(t, a.Sign())

	inv, err := f.Inverse(a)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Mul(a, inv).Cmp(big.NewInt(1)))
}

func TestField_Random(t *testing.T) {
	f := toyField(t)
	r := newDeterministicReader("random")

	for i := 0; i < 1000; i++ {
		v, err := f.Random(r)
		require.NoError(t, err)
		assert.True(t, f.Contains(v))
	}
}

func TestField_RandomDeterministicWithSameSeed(t *testing.T) {
	s, err := LookupScheme(SchemeP1279)
	require.NoError(t, err)

	a, err := s.Field().Random(newDeterministicReader("seed"))
	require.NoError(t, err)
	b, err := s.Field().Random(newDeterministicReader("seed"))
	require.NoError(t, err)
	c, err := s.Field().Random(newDeterministicReader("other"))
	require.NoError(t, err)

	assert.Equal(t, 0, a.Cmp(b))
	assert.NotEqual(t, 0, a.Cmp(c))
}

func TestField_RandomErrors(t *testing.T) {
	f := toyField(t)

	_, err := f.Random(failingReader{})
	assert.ErrorIs(t, err, errEntropy)

	_, err = f.Random(nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestField_Contains(t *testing.T) {
	f := toyField(t)

	assert.True(t, f.Contains(big.NewInt(0)))
	assert.True(t, f.Contains(big.NewInt(256)))
	assert.False(t, f.Contains(big.NewInt(257)))
	assert.False(t, f.Contains(big.NewInt(-1)))
	assert.False(t, f.Contains(nil))
}

func TestWipeInt(t *testing.T) {
	v := new(big.Int).Set(mersenne(200))
	words := v.Bits()
	wipeInt(v)

	assert.Zero(t, v.Sign())
	for _, w := range words {
		assert.Zero(t, w)
	}
	wipeInt(nil)
}
