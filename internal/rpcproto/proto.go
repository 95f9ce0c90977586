// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcproto defines the procedure numbers, envelope, and
// request/response wire types of the syscall-proxy protocol. Each procedure
// gets its own Request and Response type, following the same one-pair-per-
// call shape as golang.org/x/debug's proxyrpc package, but with hand-written
// Encode/Decode methods built from package wire instead of gob tags, per the
// protocol's binary encoding rules.
package rpcproto

import (
	"fmt"

	"github.com/catabozan/p3-syscall-server/internal/wire"
)

// Program and Version identify this protocol within the envelope, the way
// an ONC RPC program/version pair would.
const (
	Program = 0x32333030 // "2300" in ASCII — arbitrary, stable within this protocol.
	Version = 1
)

// Procedure numbers, stable within Version.
type Procedure uint32

const (
	ProcOpen Procedure = 1 + iota
	ProcOpenAt
	ProcClose
	ProcRead
	ProcPread
	ProcWrite
	ProcPwrite
	ProcStat
	ProcFstatAt
	ProcFstat
	ProcFcntl
	ProcFdatasync
)

func (p Procedure) String() string {
	switch p {
	case ProcOpen:
		return "Open"
	case ProcOpenAt:
		return "OpenAt"
	case ProcClose:
		return "Close"
	case ProcRead:
		return "Read"
	case ProcPread:
		return "Pread"
	case ProcWrite:
		return "Write"
	case ProcPwrite:
		return "Pwrite"
	case ProcStat:
		return "Stat"
	case ProcFstatAt:
		return "FstatAt"
	case ProcFstat:
		return "Fstat"
	case ProcFcntl:
		return "Fcntl"
	case ProcFdatasync:
		return "Fdatasync"
	default:
		return fmt.Sprintf("Procedure(%d)", uint32(p))
	}
}

// Status is the envelope-level accept status, distinct from the kernel
// errno each procedure's body carries: a non-OK status means the server
// never ran the handler at all.
type Status uint32

const (
	StatusOK Status = iota
	StatusGarbageArgs
	StatusProcUnavail
	StatusSystemErr
)

// Credentials accompanies every request. The server does not enforce
// anything derived from it (authentication is out of scope) but it is part
// of the wire envelope and round-trips.
type Credentials struct {
	Uid uint32
	Gid uint32
	Pid uint32
}

func (c Credentials) Encode(e *wire.Encoder) {
	e.PutUint32(c.Uid)
	e.PutUint32(c.Gid)
	e.PutUint32(c.Pid)
}

func DecodeCredentials(d *wire.Decoder) (Credentials, error) {
	var c Credentials
	var err error
	if c.Uid, err = d.GetUint32(); err != nil {
		return c, err
	}
	if c.Gid, err = d.GetUint32(); err != nil {
		return c, err
	}
	if c.Pid, err = d.GetUint32(); err != nil {
		return c, err
	}
	return c, nil
}

// RequestHeader precedes every request body on the wire.
type RequestHeader struct {
	TxID  uint32
	Prog  uint32
	Vers  uint32
	Proc  Procedure
	Creds Credentials
}

func (h RequestHeader) Encode(e *wire.Encoder) {
	e.PutUint32(h.TxID)
	e.PutUint32(h.Prog)
	e.PutUint32(h.Vers)
	e.PutUint32(uint32(h.Proc))
	h.Creds.Encode(e)
}

func DecodeRequestHeader(d *wire.Decoder) (RequestHeader, error) {
	var h RequestHeader
	var err error
	if h.TxID, err = d.GetUint32(); err != nil {
		return h, err
	}
	if h.Prog, err = d.GetUint32(); err != nil {
		return h, err
	}
	if h.Vers, err = d.GetUint32(); err != nil {
		return h, err
	}
	proc, err := d.GetUint32()
	if err != nil {
		return h, err
	}
	h.Proc = Procedure(proc)
	if h.Creds, err = DecodeCredentials(d); err != nil {
		return h, err
	}
	return h, nil
}

// ResponseHeader precedes every response body on the wire.
type ResponseHeader struct {
	TxID   uint32
	Status Status
}

func (h ResponseHeader) Encode(e *wire.Encoder) {
	e.PutUint32(h.TxID)
	e.PutUint32(uint32(h.Status))
}

func DecodeResponseHeader(d *wire.Decoder) (ResponseHeader, error) {
	var h ResponseHeader
	var err error
	if h.TxID, err = d.GetUint32(); err != nil {
		return h, err
	}
	status, err := d.GetUint32()
	if err != nil {
		return h, err
	}
	h.Status = Status(status)
	return h, nil
}

// MaxPath and MaxPayload are the upper bounds from spec §4.1.
const (
	MaxPath    = 4096
	MaxPayload = 1 << 20
)
