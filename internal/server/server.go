// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server implements the dispatcher and per-procedure handlers
// described in spec §4.4: one Dispatcher per accepted connection, owning a
// single fdtable.Table and executing requests strictly in arrival order.
// It generalizes the mutex-guarded, slice-indexed "files []*file" table in
// golang.org/x/debug's program/server/server.go (there backed by
// program.File, an in-memory abstraction; here backed by real kernel
// descriptors via golang.org/x/sys/unix).
package server

import (
	"fmt"
	"log"

	"github.com/catabozan/p3-syscall-server/internal/fdtable"
	"github.com/catabozan/p3-syscall-server/internal/rpcproto"
	"github.com/catabozan/p3-syscall-server/internal/transport"
	"github.com/catabozan/p3-syscall-server/internal/wire"
	"golang.org/x/sys/unix"
)

// TableCapacity bounds the number of simultaneously open handles per
// connection.
const TableCapacity = 1024

// Dispatcher owns one connection's session and descriptor translation
// table for its entire lifetime: Accepted -> Serving -> (Broken |
// ClientClosed) -> Torn-Down, per spec §4.4.
type Dispatcher struct {
	sess  *transport.Session
	table *fdtable.Table
	log   *log.Logger
}

// New returns a Dispatcher ready to serve requests arriving on sess.
func New(sess *transport.Session, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		sess:  sess,
		table: fdtable.New(TableCapacity),
		log:   logger,
	}
}

// Serve reads requests serially until the session breaks or the client
// closes it, then tears the connection down: every live kernel descriptor
// the connection owns is closed. Serve never returns while the connection
// is healthy; it owns its goroutine for the connection's entire lifetime,
// matching the "single-threaded per connection" rule of spec §5.
func (d *Dispatcher) Serve() error {
	defer d.teardown()
	for {
		req, err := d.sess.Recv()
		if err != nil {
			return fmt.Errorf("server: recv: %w", err)
		}
		resp := d.handle(req)
		if err := d.sess.Send(resp); err != nil {
			return fmt.Errorf("server: send: %w", err)
		}
	}
}

func (d *Dispatcher) teardown() {
	d.table.CloseAll(func(fd int) error { return unix.Close(fd) })
}

// handle decodes one request, dispatches it to the matching handler, and
// returns the encoded response. It never returns an error: anything that
// goes wrong at the envelope level becomes a StatusGarbageArgs or
// StatusProcUnavail response rather than tearing down the connection,
// since the server "never emits an unsolicited message" and every response
// must correspond to exactly one prior request (spec §4.4).
func (d *Dispatcher) handle(req []byte) []byte {
	dec := wire.NewDecoder(req)
	hdr, err := rpcproto.DecodeRequestHeader(dec)
	if err != nil {
		return encodeStatus(0, rpcproto.StatusGarbageArgs)
	}

	body, err := d.dispatch(hdr.Proc, dec)
	if err != nil {
		d.log.Printf("dispatch %s: %v", hdr.Proc, err)
		return encodeStatus(hdr.TxID, rpcproto.StatusProcUnavail)
	}

	e := wire.NewEncoder(len(req) + 16)
	rpcproto.ResponseHeader{TxID: hdr.TxID, Status: rpcproto.StatusOK}.Encode(e)
	e.PutRaw(body)
	return e.Bytes()
}

func encodeStatus(txID uint32, status rpcproto.Status) []byte {
	e := wire.NewEncoder(8)
	rpcproto.ResponseHeader{TxID: txID, Status: status}.Encode(e)
	return e.Bytes()
}

func (d *Dispatcher) dispatch(proc rpcproto.Procedure, dec *wire.Decoder) ([]byte, error) {
	switch proc {
	case rpcproto.ProcOpen:
		return d.handleOpen(dec)
	case rpcproto.ProcOpenAt:
		return d.handleOpenAt(dec)
	case rpcproto.ProcClose:
		return d.handleClose(dec)
	case rpcproto.ProcRead:
		return d.handleRead(dec)
	case rpcproto.ProcPread:
		return d.handlePread(dec)
	case rpcproto.ProcWrite:
		return d.handleWrite(dec)
	case rpcproto.ProcPwrite:
		return d.handlePwrite(dec)
	case rpcproto.ProcStat:
		return d.handleStat(dec)
	case rpcproto.ProcFstatAt:
		return d.handleFstatAt(dec)
	case rpcproto.ProcFstat:
		return d.handleFstat(dec)
	case rpcproto.ProcFcntl:
		return d.handleFcntl(dec)
	case rpcproto.ProcFdatasync:
		return d.handleFdatasync(dec)
	default:
		return nil, fmt.Errorf("unknown procedure %d", proc)
	}
}

// errnoOf extracts the platform error-indicator value captured from err, or
// 0 if err is nil.
func errnoOf(err error) int32 {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return int32(errno)
	}
	return int32(unix.EIO)
}
