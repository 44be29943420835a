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

// Package secure holds secret material in locked, explicitly zeroed memory.
//
// Secrets passed to the splitter and recovered by the combiner live in a
// Bytes buffer for as long as they are needed and are destroyed
// immediately afterwards. Locking is best effort: when the process lacks
// RLIMIT_MEMLOCK headroom the buffer is still usable, only unlocked.
package secure

import (
	"crypto/subtle"
	"errors"
	"runtime"
	"sync"
)

// ErrDestroyed is returned when reading a destroyed buffer.
var ErrDestroyed = errors.New("secure buffer has been destroyed")

// Bytes is a buffer for sensitive data with mlock and explicit zeroing.
type Bytes struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// New allocates a zeroed buffer of size bytes and attempts to lock it.
func New(size int) *Bytes {
	b := &Bytes{data: make([]byte, size)}
	b.locked = mlock(b.data)

	// Clears the memory even if Destroy is never called.
	runtime.SetFinalizer(b, func(b *Bytes) {
		b.Destroy()
	})
	return b
}

// FromSlice copies data into a new buffer and zeroes the source.
func FromSlice(data []byte) *Bytes {
	b := New(len(data))
	copy(b.data, data)
	Wipe(data)
	return b
}

// Bytes returns the underlying slice, or nil once destroyed. The slice is
// not a copy; it is zeroed by Destroy.
func (b *Bytes) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// String returns a copy of the contents as a string. Strings cannot be
// zeroed, so call it only at the boundary where a string is required.
func (b *Bytes) String() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return "", ErrDestroyed
	}
	return string(b.data), nil
}

// Len returns the length of the data.
func (b *Bytes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// IsLocked reports whether the memory is mlocked.
func (b *Bytes) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Destroy zeroes and unlocks the memory. Safe to call multiple times.
func (b *Bytes) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}

	Wipe(b.data)
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil
	runtime.SetFinalizer(b, nil)
}

// Wipe overwrites data with zeros.
func Wipe(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	// keeps the compiler from eliding the loop above
	subtle.ConstantTimeCopy(1, data, make([]byte, len(data)))
}

// Equal compares two secrets in constant time.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
