// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shim implements the client side of the interposed entry points:
// per-thread session ownership, the two classes of re-entry guard, and the
// direct-kernel fallback path described in spec §4.5/§4.6/§5. cmd/p3shim is
// the cgo veneer that actually binds these functions to libc names; this
// package knows nothing about cgo or C calling convention.
//
// Generalized from golang.org/x/debug's program/client/client.go, which
// exposes one Go method per RPC and never falls back to anything: here each
// procedure is a transparent interposition point instead of a deliberately
// invoked client call, so every Do* function must behave exactly like the
// libc function it replaces even when the server is unreachable.
package shim

import (
	"sync"
	"sync/atomic"

	"github.com/catabozan/p3-syscall-server/internal/rpcproto"
	"github.com/catabozan/p3-syscall-server/internal/transport"
	"github.com/catabozan/p3-syscall-server/internal/wire"
	"golang.org/x/sys/unix"
)

// entryPoint indexes the per-entry-point re-entry guard array. One value per
// interposed libc function, per spec §5's "per-thread booleans, one per
// interposed entry point."
type entryPoint int

const (
	epOpen entryPoint = iota
	epOpenat
	epClose
	epRead
	epPread
	epWrite
	epPwrite
	epStat
	epFstatat
	epFstat
	epFcntl
	epFdatasync
	numEntryPoints
)

// threadState is owned by exactly one OS thread for its entire lifetime; it
// is never touched by any other thread, so it needs no internal lock (spec
// §4.6's "no locks are needed on the client because state is not shared
// between threads").
type threadState struct {
	guards        [numEntryPoints]bool
	rpcInProgress bool
	sess          *transport.Session
}

var (
	registryMu sync.RWMutex
	registry   = map[int]*threadState{}
)

// stateFor returns the calling thread's state, creating it on first use.
func stateFor(tid int) *threadState {
	registryMu.RLock()
	ts := registry[tid]
	registryMu.RUnlock()
	if ts != nil {
		return ts
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if ts = registry[tid]; ts != nil {
		return ts
	}
	ts = &threadState{}
	registry[tid] = ts
	return ts
}

// ReleaseThread tears down tid's session and forgets its state. cmd/p3shim
// calls this from a pthread_key_create destructor, the portable signal that
// a specific pthread is exiting (see DESIGN.md for why a goroutine-exit hook
// would be the wrong lifetime here).
func ReleaseThread(tid int) {
	registryMu.Lock()
	ts, ok := registry[tid]
	delete(registry, tid)
	registryMu.Unlock()
	if ok && ts.sess != nil {
		_ = ts.sess.Close()
	}
}

// Shutdown closes every thread's session. cmd/p3shim calls this from a
// process-exit destructor so no session outlives the process.
func Shutdown() {
	registryMu.Lock()
	stolen := registry
	registry = map[int]*threadState{}
	registryMu.Unlock()
	for _, ts := range stolen {
		if ts.sess != nil {
			_ = ts.sess.Close()
		}
	}
}

// enter implements steps 1-3 of the seven-step template: it looks up this
// thread's state and, if neither guard is held, sets the per-entry-point
// guard and returns ok=true. Callers that get ok=false must take the
// fallback path without touching ts further.
func enter(ep entryPoint) (ts *threadState, ok bool) {
	ts = stateFor(unix.Gettid())
	if ts.guards[ep] || ts.rpcInProgress {
		return ts, false
	}
	ts.guards[ep] = true
	return ts, true
}

// leave implements step 7: clear the per-entry-point guard.
func leave(ts *threadState, ep entryPoint) { ts.guards[ep] = false }

// ensureSession implements step 4: lazily dial a session for this thread,
// holding the shared "RPC in progress" guard for the duration of the dial
// since the transport library may itself perform file or network I/O that
// would otherwise re-enter the shim (spec §4.6/§5).
func ensureSession(ts *threadState) (*transport.Session, error) {
	if ts.sess != nil && !ts.sess.Broken() {
		return ts.sess, nil
	}
	ts.rpcInProgress = true
	sess, err := transport.Dial()
	ts.rpcInProgress = false
	if err != nil {
		return nil, err
	}
	ts.sess = sess
	return sess, nil
}

var txCounter uint32

func nextTxID() uint32 { return atomic.AddUint32(&txCounter, 1) }

func credentials() rpcproto.Credentials {
	return rpcproto.Credentials{
		Uid: uint32(unix.Getuid()),
		Gid: uint32(unix.Getgid()),
		Pid: uint32(unix.Getpid()),
	}
}

func header(proc rpcproto.Procedure) rpcproto.RequestHeader {
	return rpcproto.RequestHeader{
		TxID:  nextTxID(),
		Prog:  rpcproto.Program,
		Vers:  rpcproto.Version,
		Proc:  proc,
		Creds: credentials(),
	}
}

// roundTrip implements step 5: marshal a request, perform the session call,
// and return the raw response body (past the response header) plus whether
// the call succeeded end-to-end. Any failure here — transport error,
// malformed response, non-OK status — means the caller must fall back.
func roundTrip(ts *threadState, proc rpcproto.Procedure, sess *transport.Session, body *wire.Encoder) (*wire.Decoder, bool) {
	e := wire.NewEncoder(64 + len(body.Bytes()))
	header(proc).Encode(e)
	e.PutRaw(body.Bytes())

	ts.rpcInProgress = true
	resp, err := sess.Call(e.Bytes())
	ts.rpcInProgress = false
	if err != nil {
		return nil, false
	}

	dec := wire.NewDecoder(resp)
	hdr, err := rpcproto.DecodeResponseHeader(dec)
	if err != nil || hdr.Status != rpcproto.StatusOK {
		return nil, false
	}
	return dec, true
}

// errnoOf extracts the platform error-indicator value from a kernel error,
// or 0 if err is nil. Duplicated from internal/server rather than shared,
// since the two packages have no other reason to depend on each other.
func errnoOf(err error) int32 {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return int32(errno)
	}
	return int32(unix.EIO)
}
