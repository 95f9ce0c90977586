// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport implements the connected-stream session described in
// spec §4.2: a single call(request) -> response operation, at most one
// outstanding call at a time, torn down on any failure. It tunnels the
// rpcproto/wire value layer through a 4-byte big-endian length prefix atop
// either a Unix domain socket or a TCP socket, selected the way
// ogle/socket.go picks a per-UID/PID Unix socket name, generalized to the
// fixed endpoint spec §6 requires.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/catabozan/p3-syscall-server/internal/config"
)

// ErrBroken is returned by Call once a session has failed; per spec §7 the
// client never retries on transport error and must treat the session as
// dead for the rest of its (thread's) lifetime.
var ErrBroken = errors.New("transport: session broken")

// maxFrame bounds a single frame so a corrupt length prefix cannot cause an
// unbounded allocation. It comfortably covers the largest legal message
// (a payload-bound read/write body plus envelope overhead).
const maxFrame = config.MaxPayload + config.MaxPath + 4096

// Session is a connected stream endpoint plus framing, owned by exactly one
// goroutine at a time. It is not safe for concurrent Call invocations; the
// shim enforces the "one thread, one session" rule described in spec §4.6,
// and the mutex here only guards against accidental misuse.
type Session struct {
	conn   net.Conn
	mu     sync.Mutex
	broken bool
}

// Dial opens a new session to the fixed endpoint selected by
// config.SelectedTransport.
func Dial() (*Session, error) {
	var conn net.Conn
	var err error
	switch config.SelectedTransport() {
	case config.TransportTCP:
		addr := fmt.Sprintf("%s:%d", config.TCPHost, config.TCPPort)
		conn, err = net.Dial("tcp", addr)
	default:
		conn, err = net.Dial("unix", config.SocketPath)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Listen creates the server-side listener for the configured transport,
// unlinking any stale Unix socket entry first, per spec §6.
func Listen() (net.Listener, error) {
	switch config.SelectedTransport() {
	case config.TransportTCP:
		addr := fmt.Sprintf("%s:%d", config.TCPHost, config.TCPPort)
		return net.Listen("tcp", addr)
	default:
		if err := os.Remove(config.SocketPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("transport: removing stale socket: %w", err)
		}
		return net.Listen("unix", config.SocketPath)
	}
}

// New wraps an already-connected net.Conn (used on the server side, one per
// accepted connection).
func New(conn net.Conn) *Session { return &Session{conn: conn} }

// Broken reports whether a prior Call, Send, or Recv failed and the session
// must no longer be used.
func (s *Session) Broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

// Call writes one framed request and reads back one framed response. It is
// the only operation exposed to shim callers: blocking, at most one
// outstanding call, and the session is marked broken on any error.
func (s *Session) Call(req []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, ErrBroken
	}
	if err := s.writeFrame(req); err != nil {
		s.broken = true
		return nil, err
	}
	resp, err := s.readFrame()
	if err != nil {
		s.broken = true
		return nil, err
	}
	return resp, nil
}

// Send and Recv are the server-side halves of the same framing, used by the
// dispatcher's read-serially loop rather than Call's request/response pair.
func (s *Session) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return ErrBroken
	}
	if err := s.writeFrame(msg); err != nil {
		s.broken = true
		return err
	}
	return nil
}

func (s *Session) Recv() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, ErrBroken
	}
	msg, err := s.readFrame()
	if err != nil {
		s.broken = true
		return nil, err
	}
	return msg, nil
}

func (s *Session) writeFrame(payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := s.conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("transport: write length: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("transport: write payload: %w", err)
	}
	return nil
}

func (s *Session) readFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(s.conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("transport: read length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrame {
		return nil, fmt.Errorf("transport: frame of %d exceeds max %d", n, maxFrame)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return nil, fmt.Errorf("transport: read payload: %w", err)
	}
	return buf, nil
}

// Close tears the session down. Per spec §4.4's connection state machine,
// Torn-Down follows either Broken or ClientClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = true
	return s.conn.Close()
}
