// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command p3d listens for connections from intercepted client processes
// and serves the syscall proxy protocol over each one.
package main

import (
	"flag"
	"log"
	"net"
	"os"

	"github.com/catabozan/p3-syscall-server/internal/config"
	"github.com/catabozan/p3-syscall-server/internal/server"
	"github.com/catabozan/p3-syscall-server/internal/transport"
)

var transportFlag = flag.String("transport", "", "override "+config.EnvTransport+" (\"unix\" or \"tcp\")")

func main() {
	log.SetFlags(0)
	log.SetPrefix("p3d: ")
	flag.Parse()
	if *transportFlag != "" {
		os.Setenv(config.EnvTransport, *transportFlag)
	}

	ln, err := transport.Listen()
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("listening on %s (%s)", ln.Addr(), config.SelectedTransport())

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}
		go serveConn(conn)
	}
}

func serveConn(conn net.Conn) {
	logger := log.New(os.Stderr, "p3d: ", log.LstdFlags)
	logger.Printf("connection from %s", conn.RemoteAddr())
	d := server.New(transport.New(conn), logger)
	if err := d.Serve(); err != nil {
		logger.Printf("connection %s: %v", conn.RemoteAddr(), err)
	}
}
