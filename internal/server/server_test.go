// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/catabozan/p3-syscall-server/internal/rpcproto"
	"github.com/catabozan/p3-syscall-server/internal/transport"
	"github.com/catabozan/p3-syscall-server/internal/wire"
	"golang.org/x/sys/unix"
)

// harness wires a Dispatcher to one end of an in-process pipe and exposes
// the other end as an ordinary client session, the way proxyrpc's tests
// drive golang.org/x/debug's server over an in-memory connection.
type harness struct {
	t       *testing.T
	client  *transport.Session
	done    chan error
	nextTxn uint32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	logger := log.New(os.Stderr, "server_test: ", 0)
	d := New(transport.New(serverConn), logger)
	done := make(chan error, 1)
	go func() { done <- d.Serve() }()
	h := &harness{t: t, client: transport.New(clientConn), done: done, nextTxn: 1}
	t.Cleanup(func() { _ = h.client.Close() })
	return h
}

func (h *harness) call(proc rpcproto.Procedure, body wire.Encoder) []byte {
	h.t.Helper()
	txID := h.nextTxn
	h.nextTxn++

	e := wire.NewEncoder(64)
	rpcproto.RequestHeader{
		TxID: txID,
		Prog: rpcproto.Program,
		Vers: rpcproto.Version,
		Proc: proc,
	}.Encode(e)
	e.PutRaw(body.Bytes())

	resp, err := h.client.Call(e.Bytes())
	if err != nil {
		h.t.Fatalf("Call(%s): %v", proc, err)
	}

	dec := wire.NewDecoder(resp)
	hdr, err := rpcproto.DecodeResponseHeader(dec)
	if err != nil {
		h.t.Fatalf("DecodeResponseHeader: %v", err)
	}
	if hdr.TxID != txID {
		h.t.Fatalf("response TxID = %d, want %d", hdr.TxID, txID)
	}
	if hdr.Status != rpcproto.StatusOK {
		h.t.Fatalf("%s: status = %v, want StatusOK", proc, hdr.Status)
	}
	return resp[len(resp)-dec.Remaining():]
}

func (h *harness) open(path string, flags int32, mode uint32) rpcproto.OpenResponse {
	h.t.Helper()
	e := wire.NewEncoder(32)
	rpcproto.OpenRequest{Path: path, Flags: flags, Mode: mode}.Encode(e)
	body := h.call(rpcproto.ProcOpen, *e)
	resp, err := rpcproto.DecodeOpenResponse(wire.NewDecoder(body))
	if err != nil {
		h.t.Fatalf("DecodeOpenResponse: %v", err)
	}
	return resp
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "msg.txt")

	opened := h.open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0o644)
	if opened.Result < 0 {
		t.Fatalf("open: err %d", opened.Err)
	}

	const msg = "Hello from intercepted syscalls! This is a test message."
	if len(msg) != 56 {
		t.Fatalf("fixture message is %d bytes, test assumes a fixed length", len(msg))
	}

	we := wire.NewEncoder(64)
	rpcproto.WriteRequest{Handle: opened.Handle, Data: []byte(msg)}.Encode(we)
	wbody := h.call(rpcproto.ProcWrite, *we)
	wresp, err := rpcproto.DecodeWriteResponse(wire.NewDecoder(wbody))
	if err != nil {
		t.Fatalf("DecodeWriteResponse: %v", err)
	}
	if int(wresp.Result) != len(msg) {
		t.Fatalf("write result = %d, want %d", wresp.Result, len(msg))
	}

	seekBack := h.open(path, unix.O_RDONLY, 0)
	re := wire.NewEncoder(16)
	rpcproto.ReadRequest{Handle: seekBack.Handle, Count: uint32(len(msg))}.Encode(re)
	rbody := h.call(rpcproto.ProcRead, *re)
	rresp, err := rpcproto.DecodeReadResponse(wire.NewDecoder(rbody))
	if err != nil {
		t.Fatalf("DecodeReadResponse: %v", err)
	}
	if string(rresp.Data) != msg {
		t.Fatalf("read back %q, want %q", rresp.Data, msg)
	}
}

func TestStatKnownSize(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "sized.bin")
	if err := os.WriteFile(path, make([]byte, 4096), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	se := wire.NewEncoder(32)
	rpcproto.StatRequest{Path: path}.Encode(se)
	sbody := h.call(rpcproto.ProcStat, *se)
	sresp, err := rpcproto.DecodeStatResponse(wire.NewDecoder(sbody))
	if err != nil {
		t.Fatalf("DecodeStatResponse: %v", err)
	}
	if sresp.Result != 0 {
		t.Fatalf("stat result = %d, want 0", sresp.Result)
	}
	if sresp.Stat.Size != 4096 {
		t.Fatalf("stat size = %d, want 4096", sresp.Stat.Size)
	}
}

func TestStatNonexistentPath(t *testing.T) {
	h := newHarness(t)
	se := wire.NewEncoder(32)
	rpcproto.StatRequest{Path: filepath.Join(t.TempDir(), "nope")}.Encode(se)
	sbody := h.call(rpcproto.ProcStat, *se)
	sresp, err := rpcproto.DecodeStatResponse(wire.NewDecoder(sbody))
	if err != nil {
		t.Fatalf("DecodeStatResponse: %v", err)
	}
	if sresp.Result != -1 {
		t.Fatalf("stat result = %d, want -1", sresp.Result)
	}
	if sresp.Err != int32(unix.ENOENT) {
		t.Fatalf("stat err = %d, want ENOENT", sresp.Err)
	}
	if sresp.Stat != (rpcproto.Stat{}) {
		t.Fatalf("stat record on failure = %+v, want zero value", sresp.Stat)
	}
}

func TestCloseBadHandle(t *testing.T) {
	h := newHarness(t)
	ce := wire.NewEncoder(8)
	rpcproto.CloseRequest{Handle: 999}.Encode(ce)
	cbody := h.call(rpcproto.ProcClose, *ce)
	cresp, err := rpcproto.DecodeWriteResponse(wire.NewDecoder(cbody))
	if err != nil {
		t.Fatalf("DecodeWriteResponse: %v", err)
	}
	if cresp.Result != -1 {
		t.Fatalf("close(999) result = %d, want -1", cresp.Result)
	}
	if cresp.Err != int32(unix.EBADF) {
		t.Fatalf("close(999) err = %d, want EBADF", cresp.Err)
	}
}

func TestFcntlDuplicateWithLowerBound(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "dup.txt")
	opened := h.open(path, unix.O_RDWR|unix.O_CREAT, 0o644)
	if opened.Result < 0 {
		t.Fatalf("open: err %d", opened.Err)
	}

	fe := wire.NewEncoder(32)
	rpcproto.FcntlRequest{
		Handle: opened.Handle,
		Cmd:    unix.F_DUPFD,
		Arg:    rpcproto.CtlArg{Tag: rpcproto.CtlArgInt, Int: 10},
	}.Encode(fe)
	fbody := h.call(rpcproto.ProcFcntl, *fe)
	fresp, err := rpcproto.DecodeFcntlResponse(wire.NewDecoder(fbody))
	if err != nil {
		t.Fatalf("DecodeFcntlResponse: %v", err)
	}
	if fresp.Result < 10 {
		t.Fatalf("F_DUPFD result = %d, want >= 10", fresp.Result)
	}
	if fresp.Result == opened.Handle {
		t.Fatalf("F_DUPFD returned the original handle %d", opened.Handle)
	}
}

func TestPositionalWriteThenRead(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "positional.bin")
	opened := h.open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0o644)
	if opened.Result < 0 {
		t.Fatalf("open: err %d", opened.Err)
	}

	pwe := wire.NewEncoder(32)
	rpcproto.PwriteRequest{Handle: opened.Handle, Data: []byte("01234"), Offset: 0}.Encode(pwe)
	h.call(rpcproto.ProcPwrite, *pwe)

	pwe2 := wire.NewEncoder(32)
	rpcproto.PwriteRequest{Handle: opened.Handle, Data: []byte("ABCDE"), Offset: 5}.Encode(pwe2)
	h.call(rpcproto.ProcPwrite, *pwe2)

	pre := wire.NewEncoder(32)
	rpcproto.PreadRequest{Handle: opened.Handle, Count: 10, Offset: 0}.Encode(pre)
	prbody := h.call(rpcproto.ProcPread, *pre)
	prresp, err := rpcproto.DecodeReadResponse(wire.NewDecoder(prbody))
	if err != nil {
		t.Fatalf("DecodeReadResponse: %v", err)
	}
	if string(prresp.Data) != "01234ABCDE" {
		t.Fatalf("pread = %q, want %q", prresp.Data, "01234ABCDE")
	}
}

func TestGarbageRequestGetsGarbageArgsStatus(t *testing.T) {
	h := newHarness(t)
	resp, err := h.client.Call([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	hdr, err := rpcproto.DecodeResponseHeader(wire.NewDecoder(resp))
	if err != nil {
		t.Fatalf("DecodeResponseHeader: %v", err)
	}
	if hdr.Status != rpcproto.StatusGarbageArgs {
		t.Fatalf("status = %v, want StatusGarbageArgs", hdr.Status)
	}
}
