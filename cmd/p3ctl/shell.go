// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "interactive REPL for issuing RPCs one at a time against one session",
	RunE:  runShell,
}

// runShell keeps a single session open across commands, unlike the other
// subcommands which dial fresh per invocation, so handles opened earlier in
// the session stay valid for later commands in the same run.
func runShell(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.close()

	rl, err := readline.New("p3ctl> ")
	if err != nil {
		return fmt.Errorf("p3ctl: readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := dispatchShellLine(c, fields); err != nil {
			fmt.Println(err)
		}
	}
}

// dispatchShellLine runs one shell line's worth of commands through the
// same handler functions the top-level subcommands use, reusing c instead
// of dialing a fresh session each time.
func dispatchShellLine(c *rpcClient, fields []string) error {
	switch fields[0] {
	case "open":
		if len(fields) != 2 {
			return fmt.Errorf("usage: open <path>")
		}
		resp, err := doOpen(c, fields[1], openFlags, openMode)
		if err != nil {
			return err
		}
		fmt.Printf("handle=%d result=%d err=%d\n", resp.Handle, resp.Result, resp.Err)
	case "close":
		if len(fields) != 2 {
			return fmt.Errorf("usage: close <handle>")
		}
		handle, err := parseInt32(fields[1])
		if err != nil {
			return err
		}
		resp, err := doClose(c, handle)
		if err != nil {
			return err
		}
		fmt.Printf("result=%d err=%d\n", resp.Result, resp.Err)
	case "help":
		fmt.Println("commands: open <path>, close <handle>, quit")
	default:
		return fmt.Errorf("unrecognized command %q (try help)", fields[0])
	}
	return nil
}
