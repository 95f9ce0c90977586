// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sync/atomic"

	"github.com/catabozan/p3-syscall-server/internal/rpcproto"
	"github.com/catabozan/p3-syscall-server/internal/transport"
	"github.com/catabozan/p3-syscall-server/internal/wire"
)

// rpcClient issues one procedure call at a time against a live session,
// the same shape golang.org/x/debug's program/client.Program exposes as a
// Go method per RPC, but driven from command-line args instead of a Go
// caller.
type rpcClient struct {
	sess *transport.Session
	txID uint32
}

func dial() (*rpcClient, error) {
	sess, err := transport.Dial()
	if err != nil {
		return nil, fmt.Errorf("p3ctl: dial: %w", err)
	}
	return &rpcClient{sess: sess}, nil
}

func (c *rpcClient) close() error { return c.sess.Close() }

// call marshals header+body, performs the session round trip, and returns
// the response body past the response header. It treats a non-OK envelope
// status as a hard error since p3ctl always sends well-formed requests.
func (c *rpcClient) call(proc rpcproto.Procedure, body *wire.Encoder) (*wire.Decoder, error) {
	txID := atomic.AddUint32(&c.txID, 1)
	e := wire.NewEncoder(64 + len(body.Bytes()))
	rpcproto.RequestHeader{
		TxID: txID,
		Prog: rpcproto.Program,
		Vers: rpcproto.Version,
		Proc: proc,
	}.Encode(e)
	e.PutRaw(body.Bytes())

	resp, err := c.sess.Call(e.Bytes())
	if err != nil {
		return nil, fmt.Errorf("p3ctl: %s: %w", proc, err)
	}

	dec := wire.NewDecoder(resp)
	hdr, err := rpcproto.DecodeResponseHeader(dec)
	if err != nil {
		return nil, fmt.Errorf("p3ctl: %s: malformed response: %w", proc, err)
	}
	if hdr.TxID != txID {
		return nil, fmt.Errorf("p3ctl: %s: response txid %d, want %d", proc, hdr.TxID, txID)
	}
	if hdr.Status != rpcproto.StatusOK {
		return nil, fmt.Errorf("p3ctl: %s: server rejected call: %v", proc, hdr.Status)
	}
	return dec, nil
}
