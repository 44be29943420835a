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
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
)

// deterministicReader is a SHA-256 counter-mode stream. Tests only.
type deterministicReader struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func newDeterministicReader(seed string) io.Reader {
	return &deterministicReader{seed: []byte(seed)}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			block := make([]byte, len(r.seed)+8)
			copy(block, r.seed)
			binary.BigEndian.PutUint64(block[len(r.seed):], r.counter)
			r.counter++
			sum := sha256.Sum256(block)
			r.buf = sum[:]
		}
		c := copy(p[n:], r.buf)
		r.buf = r.buf[c:]
		n += c
	}
	return n, nil
}

var errEntropy = errors.New("entropy source failure")

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errEntropy
}

// combinations returns every k-element subset of [0, n) in lexicographic order.
func combinations(n, k int) [][]int {
	var out [][]int
	current := make([]int, 0, k)
	var walk func(start int)
	walk = func(start int) {
		if len(current) == k {
			out = append(out, append([]int(nil), current...))
			return
		}
		for i := start; i < n; i++ {
			current = append(current, i)
			walk(i + 1)
			current = current[:len(current)-1]
		}
	}
	walk(0)
	return out
}

func pick(shares []Share, idx []int) []Share {
	out := make([]Share, len(idx))
	for i, j := range idx {
		out[i] = shares[j]
	}
	return out
}
