// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcproto

import "github.com/catabozan/p3-syscall-server/internal/wire"

// Stat is the flattened file-metadata record carried by value in stat-like
// responses, per spec §3.
type Stat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint64
	Uid     uint32
	Gid     uint32
	Rdev    uint64
	Size    int64
	Blksize int64
	Blocks  int64
	Atime   int64
	Mtime   int64
	Ctime   int64
}

func (s Stat) Encode(e *wire.Encoder) {
	e.PutUint64(s.Dev)
	e.PutUint64(s.Ino)
	e.PutUint32(s.Mode)
	e.PutUint64(s.Nlink)
	e.PutUint32(s.Uid)
	e.PutUint32(s.Gid)
	e.PutUint64(s.Rdev)
	e.PutInt64(s.Size)
	e.PutInt64(s.Blksize)
	e.PutInt64(s.Blocks)
	e.PutInt64(s.Atime)
	e.PutInt64(s.Mtime)
	e.PutInt64(s.Ctime)
}

func DecodeStat(d *wire.Decoder) (Stat, error) {
	var s Stat
	var err error
	get64 := func(dst *uint64) {
		if err != nil {
			return
		}
		*dst, err = d.GetUint64()
	}
	get32 := func(dst *uint32) {
		if err != nil {
			return
		}
		*dst, err = d.GetUint32()
	}
	geti64 := func(dst *int64) {
		if err != nil {
			return
		}
		*dst, err = d.GetInt64()
	}
	get64(&s.Dev)
	get64(&s.Ino)
	get32(&s.Mode)
	get64(&s.Nlink)
	get32(&s.Uid)
	get32(&s.Gid)
	get64(&s.Rdev)
	geti64(&s.Size)
	geti64(&s.Blksize)
	geti64(&s.Blocks)
	geti64(&s.Atime)
	geti64(&s.Mtime)
	geti64(&s.Ctime)
	return s, err
}

// Flock is the advisory-lock record carried inside the control-operation
// argument union, per spec §3.
type Flock struct {
	Type   int32
	Whence int32
	Start  int64
	Len    int64
	Pid    int32
}

func (f Flock) Encode(e *wire.Encoder) {
	e.PutInt32(f.Type)
	e.PutInt32(f.Whence)
	e.PutInt64(f.Start)
	e.PutInt64(f.Len)
	e.PutInt32(f.Pid)
}

func DecodeFlock(d *wire.Decoder) (Flock, error) {
	var f Flock
	var err error
	if f.Type, err = d.GetInt32(); err != nil {
		return f, err
	}
	if f.Whence, err = d.GetInt32(); err != nil {
		return f, err
	}
	if f.Start, err = d.GetInt64(); err != nil {
		return f, err
	}
	if f.Len, err = d.GetInt64(); err != nil {
		return f, err
	}
	pid, err := d.GetInt32()
	if err != nil {
		return f, err
	}
	f.Pid = pid
	return f, nil
}

// CtlArgTag discriminates the procedure-argument union used only by the
// control operation, per spec §3.
type CtlArgTag uint32

const (
	CtlArgNone CtlArgTag = iota
	CtlArgInt
	CtlArgFlock
)

// CtlArg is the tagged union { none; signed integer; file-lock record }.
type CtlArg struct {
	Tag   CtlArgTag
	Int   int32
	Flock Flock
}

func (a CtlArg) Encode(e *wire.Encoder) {
	e.PutTag(uint32(a.Tag))
	switch a.Tag {
	case CtlArgNone:
	case CtlArgInt:
		e.PutInt32(a.Int)
	case CtlArgFlock:
		a.Flock.Encode(e)
	}
}

func DecodeCtlArg(d *wire.Decoder) (CtlArg, error) {
	tag, err := d.GetTag()
	if err != nil {
		return CtlArg{}, err
	}
	a := CtlArg{Tag: CtlArgTag(tag)}
	switch a.Tag {
	case CtlArgNone:
	case CtlArgInt:
		a.Int, err = d.GetInt32()
	case CtlArgFlock:
		a.Flock, err = DecodeFlock(d)
	}
	return a, err
}
