// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fdtable implements the per-connection descriptor translation
// table described in spec §3/§4.3: a fixed-capacity mapping from opaque
// client handle to real server-side descriptor, with a monotonically
// increasing allocation cursor that never reuses a released slot. It
// generalizes the linear "find the first nil slot" scan in
// golang.org/x/debug's program/server/server.go Open handler (which grows
// an unbounded []*file) into the spec's fixed-size, cursor-driven table,
// including the lower-bound variant install_from needs for the
// duplicate-descriptor control command.
package fdtable

import (
	"errors"
	"fmt"
	"sync"
)

// Handle is the opaque integer a client sees wherever a kernel file
// descriptor would normally appear. Values start at MinHandle, reserving
// 0-2 for the standard streams as spec §3 requires.
type Handle int32

// MinHandle is the first handle value the allocator will ever hand out.
const MinHandle Handle = 3

// Invalid is returned in place of a Handle when an operation fails.
const Invalid Handle = -1

// ErrBadHandle is the translation error for an out-of-range or free slot.
var ErrBadHandle = errors.New("fdtable: bad handle")

// ErrTableFull is the translation error for allocator exhaustion.
var ErrTableFull = errors.New("fdtable: table full")

const free = -1

// Table is a fixed-capacity client-handle -> server-descriptor map, owned
// exclusively by one connection's dispatcher. Only the server mutates it;
// the client never sees its internals.
type Table struct {
	mu     sync.Mutex
	desc   []int // desc[h-MinHandle] is the server descriptor, or `free`.
	cursor Handle
}

// New returns an empty Table with room for capacity live handles.
func New(capacity int) *Table {
	desc := make([]int, capacity)
	for i := range desc {
		desc[i] = free
	}
	return &Table{desc: desc, cursor: MinHandle}
}

// Install assigns the next free slot at or above the allocation cursor to
// serverFD and returns the new handle, advancing the cursor past it.
func (t *Table) Install(serverFD int) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installFromLocked(serverFD, t.cursor)
}

// InstallFrom behaves like Install but the chosen slot is the lowest free
// index at or above max(cursor, minHandle). It exists for the
// "duplicate descriptor with lower bound" control command.
func (t *Table) InstallFrom(serverFD int, minHandle Handle) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start := t.cursor
	if minHandle > start {
		start = minHandle
	}
	return t.installFromLocked(serverFD, start)
}

func (t *Table) installFromLocked(serverFD int, start Handle) (Handle, error) {
	limit := MinHandle + Handle(len(t.desc))
	for h := start; h < limit; h++ {
		idx := int(h - MinHandle)
		if t.desc[idx] == free {
			t.desc[idx] = serverFD
			if h+1 > t.cursor {
				t.cursor = h + 1
			}
			return h, nil
		}
	}
	return Invalid, fmt.Errorf("%w: capacity %d exhausted from %d", ErrTableFull, len(t.desc), start)
}

// Translate returns the server descriptor for h, or ErrBadHandle if h is
// out of range or not currently live.
func (t *Table) Translate(h Handle) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := int(h - MinHandle)
	if h < MinHandle || idx >= len(t.desc) || t.desc[idx] == free {
		return -1, ErrBadHandle
	}
	return t.desc[idx], nil
}

// Release marks h's slot free. It never closes the underlying descriptor;
// the caller decides whether and when to do that.
func (t *Table) Release(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := int(h - MinHandle)
	if h < MinHandle || idx >= len(t.desc) || t.desc[idx] == free {
		return ErrBadHandle
	}
	t.desc[idx] = free
	return nil
}

// CloseAll calls closeFD on every currently live server descriptor and
// frees its slot, in handle order. It is used at connection teardown
// (spec §4.4's Torn-Down state) to guarantee no descriptor outlives its
// connection.
func (t *Table) CloseAll(closeFD func(serverFD int) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for idx, fd := range t.desc {
		if fd == free {
			continue
		}
		_ = closeFD(fd)
		t.desc[idx] = free
	}
}
