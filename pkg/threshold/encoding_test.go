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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingUTF8, false},
		{"utf-8", EncodingUTF8, false},
		{"UTF8", EncodingUTF8, false},
		{" base64 ", EncodingBase64, false},
		{"hex", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEncoding(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEncoding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInput(t *testing.T) {
	got, err := DecodeInput("héllo", EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, []byte("héllo"), got)

	_, err = DecodeInput("\xff\xfe", EncodingUTF8)
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	for _, in := range []string{"AP8-_w==", "AP8-_w"} {
		got, err = DecodeInput(in, EncodingBase64)
		require.NoError(t, err, in)
		assert.Equal(t, []byte{0x00, 0xff, 0x3e, 0xff}, got)
	}

	_, err = DecodeInput("not base64!", EncodingBase64)
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeInput("x", Encoding("latin1"))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestDecodeInputBytes(t *testing.T) {
	in := []byte("héllo")
	got, err := DecodeInputBytes(in, EncodingUTF8)
	require.NoError(t, err)
	clear(in)
	assert.Equal(t, []byte("héllo"), got, "result must not share the input buffer")

	for _, s := range []string{"AP8-_w==", "AP8-_w"} {
		in = []byte(s)
		got, err = DecodeInputBytes(in, EncodingBase64)
		require.NoError(t, err, s)
		clear(in)
		assert.Equal(t, []byte{0x00, 0xff, 0x3e, 0xff}, got)
	}

	_, err = DecodeInputBytes([]byte{0xff, 0xfe}, EncodingUTF8)
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeInputBytes([]byte("not base64!"), EncodingBase64)
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeInputBytes([]byte("x"), Encoding("latin1"))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestEncodeOutput(t *testing.T) {
	out, enc, err := EncodeOutput([]byte("plain"), "")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
	assert.Equal(t, EncodingUTF8, enc)

	out, enc, err = EncodeOutput([]byte{0xff, 0x00}, "")
	require.NoError(t, err)
	assert.Equal(t, "_wA=", out)
	assert.Equal(t, EncodingBase64, enc)

	out, enc, err = EncodeOutput([]byte("plain"), EncodingBase64)
	require.NoError(t, err)
	assert.Equal(t, "cGxhaW4=", out)
	assert.Equal(t, EncodingBase64, enc)

	_, _, err = EncodeOutput([]byte{0xff}, EncodingUTF8)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err    error
		want   string
		client bool
	}{
		{nil, "", false},
		{fmt.Errorf("%w: %w: big", ErrInvalidParameters, ErrSecretTooLarge), KindSecretTooLarge, true},
		{fmt.Errorf("%w: k", ErrInvalidParameters), KindInvalidParameters, true},
		{fmt.Errorf("%w: dup", ErrDuplicateShare), KindDuplicateShare, true},
		{fmt.Errorf("share 1: %w", ErrMalformedShare), KindMalformedShare, true},
		{ErrInsufficientShares, KindInsufficientShares, true},
		{ErrDecode, KindDecode, true},
		{ErrUnknownScheme, KindUnknownScheme, true},
		{ErrInvalidEncoding, KindInvalidEncoding, true},
		{context.DeadlineExceeded, KindTimeout, false},
		{context.Canceled, KindCanceled, false},
		{errors.New("boom"), KindInternal, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
		assert.Equal(t, tt.client, IsClientError(tt.err), "%v", tt.err)
	}
}
