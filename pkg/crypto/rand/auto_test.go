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

package rand

import (
	"errors"
	"io"
	"testing"
)

// stubResolver returns a fixed byte or fails.
type stubResolver struct {
	fail   bool
	fill   byte
	mode   Mode
	closed bool
}

var errStub = errors.New("stub rand failure")

func (s *stubResolver) Rand(n int) ([]byte, error) {
	if s.fail {
		return nil, errStub
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = s.fill
	}
	return buf, nil
}

func (s *stubResolver) Read(p []byte) (int, error) { return readFrom(p, s.Rand) }
func (s *stubResolver) Mode() Mode                 { return s.mode }
func (s *stubResolver) Available() bool            { return !s.fail && !s.closed }
func (s *stubResolver) Close() error {
	s.closed = true
	return nil
}

func TestChainResolver_FallbackOnError(t *testing.T) {
	primary := &stubResolver{fail: true, mode: ModeTPM2}
	fallback := &stubResolver{fill: 0xAB, mode: ModeSoftware}
	c := &chainResolver{primary: primary, fallback: fallback}

	buf, err := c.Rand(4)
	if err != nil {
		t.Fatalf("fallback should succeed: %v", err)
	}
	if buf[0] != 0xAB {
		t.Fatalf("expected fallback output, got %x", buf)
	}
	if c.Mode() != ModeSoftware {
		t.Fatalf("expected software mode, got %s", c.Mode())
	}
}

func TestChainResolver_PrimaryPreferred(t *testing.T) {
	c := &chainResolver{
		primary:  &stubResolver{fill: 0x01, mode: ModePKCS11},
		fallback: &stubResolver{fill: 0x02, mode: ModeSoftware},
	}

	p := make([]byte, 8)
	if _, err := io.ReadFull(c, p); err != nil {
		t.Fatal(err)
	}
	if p[7] != 0x01 {
		t.Fatalf("expected primary output, got %x", p)
	}
	if c.Mode() != ModePKCS11 {
		t.Fatalf("expected pkcs11 mode, got %s", c.Mode())
	}
}

func TestChainResolver_BothFail(t *testing.T) {
	c := &chainResolver{
		primary:  &stubResolver{fail: true},
		fallback: &stubResolver{fail: true},
	}

	if _, err := c.Read(make([]byte, 4)); !errors.Is(err, errStub) {
		t.Fatalf("expected stub error, got %v", err)
	}
	if c.Available() {
		t.Fatal("chain should be unavailable")
	}
}

func TestChainResolver_Close(t *testing.T) {
	primary := &stubResolver{}
	fallback := &stubResolver{}
	c := &chainResolver{primary: primary, fallback: fallback}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !primary.closed || !fallback.closed {
		t.Fatal("both resolvers should be closed")
	}
	if _, err := c.Rand(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatal("second close should be a no-op")
	}
}

func TestReadFrom_ShortSource(t *testing.T) {
	short := func(n int) ([]byte, error) { return make([]byte, n/2), nil }

	n, err := readFrom(make([]byte, 8), short)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
}
