// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"net"
	"testing"
)

func pair() (*Session, *Session) {
	a, b := net.Pipe()
	return New(a), New(b)
}

func TestCallRecvSendRoundTrip(t *testing.T) {
	client, server := pair()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		req, err := server.Recv()
		if err != nil {
			done <- err
			return
		}
		echoed := append([]byte("echo:"), req...)
		done <- server.Send(echoed)
	}()

	resp, err := client.Call([]byte("ping"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(resp) != "echo:ping" {
		t.Fatalf("Call = %q, want %q", resp, "echo:ping")
	}
	if err := <-done; err != nil {
		t.Fatalf("server side: %v", err)
	}
}

func TestSessionBreaksOnTransportError(t *testing.T) {
	client, server := pair()
	defer client.Close()
	server.Close()

	if _, err := client.Call([]byte("x")); err == nil {
		t.Fatal("Call on a session whose peer closed: expected error")
	}
	if !client.Broken() {
		t.Fatal("session not marked broken after a failed Call")
	}
	if _, err := client.Call([]byte("y")); err != ErrBroken {
		t.Fatalf("second Call on broken session = %v, want ErrBroken", err)
	}
}

func TestEmptyFrameRoundTrips(t *testing.T) {
	client, server := pair()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		req, err := server.Recv()
		if err != nil {
			done <- err
			return
		}
		if len(req) != 0 {
			done <- nil
			return
		}
		done <- server.Send(nil)
	}()

	resp, err := client.Call(nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(resp) != 0 {
		t.Fatalf("Call = %q, want empty", resp)
	}
	if err := <-done; err != nil {
		t.Fatalf("server side: %v", err)
	}
}
