// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/catabozan/p3-syscall-server/internal/rpcproto"
	"github.com/catabozan/p3-syscall-server/internal/wire"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var openFlags int32
var openMode uint32

var openCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "open a file and print the resulting client handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.close()
		resp, err := doOpen(c, args[0], openFlags, openMode)
		if err != nil {
			return err
		}
		fmt.Printf("handle=%d result=%d err=%d\n", resp.Handle, resp.Result, resp.Err)
		return nil
	},
}

func doOpen(c *rpcClient, path string, flags int32, mode uint32) (rpcproto.OpenResponse, error) {
	e := wire.NewEncoder(32)
	rpcproto.OpenRequest{Path: path, Flags: flags, Mode: mode}.Encode(e)
	dec, err := c.call(rpcproto.ProcOpen, e)
	if err != nil {
		return rpcproto.OpenResponse{}, err
	}
	return rpcproto.DecodeOpenResponse(dec)
}

var closeCmd = &cobra.Command{
	Use:   "close <handle>",
	Short: "close a client handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.close()
		resp, err := doClose(c, handle)
		if err != nil {
			return err
		}
		fmt.Printf("result=%d err=%d\n", resp.Result, resp.Err)
		return nil
	},
}

func doClose(c *rpcClient, handle int32) (rpcproto.WriteResponse, error) {
	e := wire.NewEncoder(8)
	rpcproto.CloseRequest{Handle: handle}.Encode(e)
	dec, err := c.call(rpcproto.ProcClose, e)
	if err != nil {
		return rpcproto.WriteResponse{}, err
	}
	return rpcproto.DecodeWriteResponse(dec)
}

var readCmd = &cobra.Command{
	Use:   "read <handle> <count>",
	Short: "read up to count bytes from a client handle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		count, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.close()

		e := wire.NewEncoder(16)
		rpcproto.ReadRequest{Handle: handle, Count: uint32(count)}.Encode(e)
		dec, err := c.call(rpcproto.ProcRead, e)
		if err != nil {
			return err
		}
		resp, err := rpcproto.DecodeReadResponse(dec)
		if err != nil {
			return err
		}
		fmt.Printf("result=%d err=%d data=%q\n", resp.Result, resp.Err, resp.Data)
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <handle> <data>",
	Short: "write data to a client handle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.close()

		e := wire.NewEncoder(len(args[1]) + 16)
		rpcproto.WriteRequest{Handle: handle, Data: []byte(args[1])}.Encode(e)
		dec, err := c.call(rpcproto.ProcWrite, e)
		if err != nil {
			return err
		}
		resp, err := rpcproto.DecodeWriteResponse(dec)
		if err != nil {
			return err
		}
		fmt.Printf("result=%d err=%d\n", resp.Result, resp.Err)
		return nil
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "stat a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.close()

		e := wire.NewEncoder(32)
		rpcproto.StatRequest{Path: args[0]}.Encode(e)
		dec, err := c.call(rpcproto.ProcStat, e)
		if err != nil {
			return err
		}
		resp, err := rpcproto.DecodeStatResponse(dec)
		if err != nil {
			return err
		}
		fmt.Printf("result=%d err=%d size=%d mode=%o\n", resp.Result, resp.Err, resp.Stat.Size, resp.Stat.Mode)
		return nil
	},
}

var dupMinHandle int32

var dupCmd = &cobra.Command{
	Use:   "dup <handle>",
	Short: "duplicate a client handle at or above --min",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.close()

		e := wire.NewEncoder(32)
		rpcproto.FcntlRequest{
			Handle: handle,
			Cmd:    unix.F_DUPFD,
			Arg:    rpcproto.CtlArg{Tag: rpcproto.CtlArgInt, Int: dupMinHandle},
		}.Encode(e)
		dec, err := c.call(rpcproto.ProcFcntl, e)
		if err != nil {
			return err
		}
		resp, err := rpcproto.DecodeFcntlResponse(dec)
		if err != nil {
			return err
		}
		fmt.Printf("handle=%d err=%d\n", resp.Result, resp.Err)
		return nil
	},
}

var lockWait bool

var lockCmd = &cobra.Command{
	Use:   "lock <handle> <start> <len>",
	Short: "acquire a whole/partial-file write lock (F_SETLK, or F_SETLKW with --wait)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		start, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		length, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("len: %w", err)
		}
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.close()

		cmdCode := int32(unix.F_SETLK)
		if lockWait {
			cmdCode = unix.F_SETLKW
		}
		e := wire.NewEncoder(40)
		rpcproto.FcntlRequest{
			Handle: handle,
			Cmd:    cmdCode,
			Arg: rpcproto.CtlArg{Tag: rpcproto.CtlArgFlock, Flock: rpcproto.Flock{
				Type:   unix.F_WRLCK,
				Whence: 0,
				Start:  start,
				Len:    length,
			}},
		}.Encode(e)
		dec, err := c.call(rpcproto.ProcFcntl, e)
		if err != nil {
			return err
		}
		resp, err := rpcproto.DecodeFcntlResponse(dec)
		if err != nil {
			return err
		}
		fmt.Printf("result=%d err=%d\n", resp.Result, resp.Err)
		return nil
	},
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("handle: %w", err)
	}
	return int32(v), nil
}

func init() {
	openCmd.Flags().Int32Var(&openFlags, "flags", unix.O_RDONLY, "open(2) flags")
	openCmd.Flags().Uint32Var(&openMode, "mode", 0o644, "open(2) mode (used only with O_CREAT)")
	dupCmd.Flags().Int32Var(&dupMinHandle, "min", 0, "lowest acceptable handle for the duplicate")
	lockCmd.Flags().BoolVar(&lockWait, "wait", false, "use F_SETLKW (the shim would poll this; p3ctl sends it as-is)")

	rootCmd.AddCommand(openCmd, closeCmd, readCmd, writeCmd, statCmd, dupCmd, lockCmd, shellCmd)
}
