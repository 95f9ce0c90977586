// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcproto

import "golang.org/x/sys/unix"

// ArgTypeForCmd maps an fcntl command code to the argument-union variant it
// carries. Both the shim (to encode the request) and the server (to decode
// it) consult this same table, per spec §4.5's "must be decoded by the same
// table the server uses."
func ArgTypeForCmd(cmd int32) CtlArgTag {
	switch int(cmd) {
	case unix.F_GETFD, unix.F_GETFL, unix.F_GETOWN:
		return CtlArgNone
	case unix.F_DUPFD, unix.F_DUPFD_CLOEXEC, unix.F_SETFD, unix.F_SETFL, unix.F_SETOWN:
		return CtlArgInt
	case unix.F_GETLK, unix.F_SETLK, unix.F_SETLKW:
		return CtlArgFlock
	default:
		return CtlArgNone
	}
}

// IsDuplicateCmd reports whether cmd is one of the "duplicate descriptor
// with lower bound" commands, which the server satisfies via
// fdtable.Table.InstallFrom instead of a plain fcntl(2) call.
func IsDuplicateCmd(cmd int32) bool {
	switch int(cmd) {
	case unix.F_DUPFD, unix.F_DUPFD_CLOEXEC:
		return true
	default:
		return false
	}
}

// IsQueryLockCmd reports whether cmd reads a lock record back from the
// kernel into the response's output union (F_GETLK).
func IsQueryLockCmd(cmd int32) bool {
	return int(cmd) == unix.F_GETLK
}

// IsBlockingLockCmd reports whether cmd may block indefinitely (F_SETLKW),
// per spec §4.4/§9.
func IsBlockingLockCmd(cmd int32) bool {
	return int(cmd) == unix.F_SETLKW
}
