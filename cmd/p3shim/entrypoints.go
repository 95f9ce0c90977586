// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

/*
#include <fcntl.h>
#include <sys/stat.h>
#include <sys/types.h>
#include <unistd.h>
*/
import "C"

import (
	"log"
	"unsafe"

	"github.com/catabozan/p3-syscall-server/internal/rpcproto"
	"github.com/catabozan/p3-syscall-server/internal/shim"
)

// p3shimOpenFixed, p3shimOpenatFixed and p3shimFcntlFixed are called from
// veneer.c, which extracts the C variadic argument (mode_t or the fourth
// fcntl argument) before crossing into Go — cgo's //export cannot itself
// produce a C-variadic function, so the actual libc symbols "open",
// "openat" and "fcntl" are defined in C and immediately delegate here.

//export p3shimOpenFixed
func p3shimOpenFixed(path *C.char, flags C.int, mode C.mode_t) C.int {
	registerThread()
	result, errno := shim.DoOpen(C.GoString(path), int32(flags), uint32(mode))
	return setErrno(result, errno)
}

//export p3shimOpenatFixed
func p3shimOpenatFixed(dirfd C.int, path *C.char, flags C.int, mode C.mode_t) C.int {
	registerThread()
	result, errno := shim.DoOpenat(int32(dirfd), C.GoString(path), int32(flags), uint32(mode))
	return setErrno(result, errno)
}

//export p3shimFcntlFixed
func p3shimFcntlFixed(fd C.int, cmd C.int, arg C.long) C.int {
	registerThread()
	if rpcproto.IsBlockingLockCmd(int32(cmd)) {
		log.Printf("p3shim: fcntl(%d, F_SETLKW) is advisory: polling F_SETLK instead of blocking the session", fd)
	}
	ctlArg := decodeCtlArg(int32(cmd), arg)
	result, errno, out := shim.DoFcntl(int32(fd), int32(cmd), ctlArg)
	if out.Tag == rpcproto.CtlArgFlock {
		encodeFlockBack(arg, out.Flock)
	}
	return setErrno(result, errno)
}

// decodeCtlArg interprets the raw vararg word according to the same
// cmd-to-argument-type table the server uses, per spec §4.5.
func decodeCtlArg(cmd int32, arg C.long) rpcproto.CtlArg {
	switch rpcproto.ArgTypeForCmd(cmd) {
	case rpcproto.CtlArgInt:
		return rpcproto.CtlArg{Tag: rpcproto.CtlArgInt, Int: int32(arg)}
	case rpcproto.CtlArgFlock:
		lk := (*C.struct_flock)(unsafe.Pointer(uintptr(arg)))
		return rpcproto.CtlArg{Tag: rpcproto.CtlArgFlock, Flock: rpcproto.Flock{
			Type:   int32(lk.l_type),
			Whence: int32(lk.l_whence),
			Start:  int64(lk.l_start),
			Len:    int64(lk.l_len),
			Pid:    int32(lk.l_pid),
		}}
	default:
		return rpcproto.CtlArg{}
	}
}

// encodeFlockBack writes an F_GETLK result back into the caller's struct
// flock, the same out-parameter copy every other stat-shaped call performs
// in Go but here done through a raw pointer since fcntl's fourth argument
// is caller-owned memory.
func encodeFlockBack(arg C.long, f rpcproto.Flock) {
	lk := (*C.struct_flock)(unsafe.Pointer(uintptr(arg)))
	lk.l_type = C.short(f.Type)
	lk.l_whence = C.short(f.Whence)
	lk.l_start = C.off_t(f.Start)
	lk.l_len = C.off_t(f.Len)
	lk.l_pid = C.pid_t(f.Pid)
}

//export close
func goClose(fd C.int) C.int {
	registerThread()
	result, errno := shim.DoClose(int32(fd))
	return setErrno(result, errno)
}

//export read
func goRead(fd C.int, buf unsafe.Pointer, count C.size_t) C.ssize_t {
	registerThread()
	slice := unsafe.Slice((*byte)(buf), int(count))
	result, errno := shim.DoRead(int32(fd), slice)
	return C.ssize_t(setErrno(result, errno))
}

//export pread
func goPread(fd C.int, buf unsafe.Pointer, count C.size_t, offset C.off_t) C.ssize_t {
	registerThread()
	slice := unsafe.Slice((*byte)(buf), int(count))
	result, errno := shim.DoPread(int32(fd), slice, int64(offset))
	return C.ssize_t(setErrno(result, errno))
}

//export pread64
func goPread64(fd C.int, buf unsafe.Pointer, count C.size_t, offset C.off_t) C.ssize_t {
	return goPread(fd, buf, count, offset)
}

//export write
func goWrite(fd C.int, buf unsafe.Pointer, count C.size_t) C.ssize_t {
	registerThread()
	slice := unsafe.Slice((*byte)(buf), int(count))
	result, errno := shim.DoWrite(int32(fd), slice)
	return C.ssize_t(setErrno(result, errno))
}

//export pwrite
func goPwrite(fd C.int, buf unsafe.Pointer, count C.size_t, offset C.off_t) C.ssize_t {
	registerThread()
	slice := unsafe.Slice((*byte)(buf), int(count))
	result, errno := shim.DoPwrite(int32(fd), slice, int64(offset))
	return C.ssize_t(setErrno(result, errno))
}

//export pwrite64
func goPwrite64(fd C.int, buf unsafe.Pointer, count C.size_t, offset C.off_t) C.ssize_t {
	return goPwrite(fd, buf, count, offset)
}

//export stat
func goStat(path *C.char, out *C.struct_stat) C.int {
	registerThread()
	st, result, errno := shim.DoStat(C.GoString(path))
	if errno == 0 {
		fillStatT(out, st)
	}
	return setErrno(result, errno)
}

//export fstat
func goFstat(fd C.int, out *C.struct_stat) C.int {
	registerThread()
	st, result, errno := shim.DoFstat(int32(fd))
	if errno == 0 {
		fillStatT(out, st)
	}
	return setErrno(result, errno)
}

//export fstatat
func goFstatat(dirfd C.int, path *C.char, out *C.struct_stat, flags C.int) C.int {
	registerThread()
	st, result, errno := shim.DoFstatat(int32(dirfd), C.GoString(path), int32(flags))
	if errno == 0 {
		fillStatT(out, st)
	}
	return setErrno(result, errno)
}

//export newfstatat
func goNewfstatat(dirfd C.int, path *C.char, out *C.struct_stat, flags C.int) C.int {
	return goFstatat(dirfd, path, out, flags)
}

//export fdatasync
func goFdatasync(fd C.int) C.int {
	registerThread()
	result, errno := shim.DoFdatasync(int32(fd))
	return setErrno(result, errno)
}

func fillStatT(out *C.struct_stat, st rpcproto.Stat) {
	out.st_dev = C.dev_t(st.Dev)
	out.st_ino = C.ino_t(st.Ino)
	out.st_mode = C.mode_t(st.Mode)
	out.st_nlink = C.nlink_t(st.Nlink)
	out.st_uid = C.uid_t(st.Uid)
	out.st_gid = C.gid_t(st.Gid)
	out.st_rdev = C.dev_t(st.Rdev)
	out.st_size = C.off_t(st.Size)
	out.st_blksize = C.blksize_t(st.Blksize)
	out.st_blocks = C.blkcnt_t(st.Blocks)
	out.st_atim.tv_sec = C.time_t(st.Atime)
	out.st_mtim.tv_sec = C.time_t(st.Mtime)
	out.st_ctim.tv_sec = C.time_t(st.Ctime)
}
