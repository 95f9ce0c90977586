// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcproto

import "github.com/catabozan/p3-syscall-server/internal/wire"

// OpenRequest/OpenResponse implement the open-by-path procedure.
type OpenRequest struct {
	Path  string
	Flags int32
	Mode  uint32
}

func (r OpenRequest) Encode(e *wire.Encoder) {
	e.PutString(r.Path)
	e.PutInt32(r.Flags)
	e.PutUint32(r.Mode)
}

func DecodeOpenRequest(d *wire.Decoder) (OpenRequest, error) {
	var r OpenRequest
	var err error
	if r.Path, err = d.GetString(MaxPath); err != nil {
		return r, err
	}
	if r.Flags, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Mode, err = d.GetUint32(); err != nil {
		return r, err
	}
	return r, nil
}

// OpenResponse is shared by Open and OpenAt. The control duplicate commands
// answer with FcntlResponse instead.
type OpenResponse struct {
	Handle int32
	Result int32
	Err    int32
}

func (r OpenResponse) Encode(e *wire.Encoder) {
	e.PutInt32(r.Handle)
	e.PutInt32(r.Result)
	e.PutInt32(r.Err)
}

func DecodeOpenResponse(d *wire.Decoder) (OpenResponse, error) {
	var r OpenResponse
	var err error
	if r.Handle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Result, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Err, err = d.GetInt32(); err != nil {
		return r, err
	}
	return r, nil
}

// OpenAtRequest implements open-by-directory-handle-plus-path.
type OpenAtRequest struct {
	DirHandle int32
	Path      string
	Flags     int32
	Mode      uint32
}

func (r OpenAtRequest) Encode(e *wire.Encoder) {
	e.PutInt32(r.DirHandle)
	e.PutString(r.Path)
	e.PutInt32(r.Flags)
	e.PutUint32(r.Mode)
}

func DecodeOpenAtRequest(d *wire.Decoder) (OpenAtRequest, error) {
	var r OpenAtRequest
	var err error
	if r.DirHandle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Path, err = d.GetString(MaxPath); err != nil {
		return r, err
	}
	if r.Flags, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Mode, err = d.GetUint32(); err != nil {
		return r, err
	}
	return r, nil
}

// CloseRequest/CloseResponse implement close.
type CloseRequest struct {
	Handle int32
}

func (r CloseRequest) Encode(e *wire.Encoder) { e.PutInt32(r.Handle) }

func DecodeCloseRequest(d *wire.Decoder) (CloseRequest, error) {
	h, err := d.GetInt32()
	return CloseRequest{Handle: h}, err
}

type CloseResponse struct {
	Result int32
	Err    int32
}

func (r CloseResponse) Encode(e *wire.Encoder) {
	e.PutInt32(r.Result)
	e.PutInt32(r.Err)
}

func DecodeCloseResponse(d *wire.Decoder) (CloseResponse, error) {
	var r CloseResponse
	var err error
	if r.Result, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Err, err = d.GetInt32(); err != nil {
		return r, err
	}
	return r, nil
}

// ReadRequest/ReadResponse implement read.
type ReadRequest struct {
	Handle int32
	Count  uint32
}

func (r ReadRequest) Encode(e *wire.Encoder) {
	e.PutInt32(r.Handle)
	e.PutUint32(r.Count)
}

func DecodeReadRequest(d *wire.Decoder) (ReadRequest, error) {
	var r ReadRequest
	var err error
	if r.Handle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Count, err = d.GetUint32(); err != nil {
		return r, err
	}
	return r, nil
}

// ReadResponse is shared by Read and Pread.
type ReadResponse struct {
	Data   []byte
	Result int32
	Err    int32
}

func (r ReadResponse) Encode(e *wire.Encoder) {
	e.PutBytes(r.Data)
	e.PutInt32(r.Result)
	e.PutInt32(r.Err)
}

func DecodeReadResponse(d *wire.Decoder) (ReadResponse, error) {
	var r ReadResponse
	var err error
	if r.Data, err = d.GetBytes(MaxPayload); err != nil {
		return r, err
	}
	if r.Result, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Err, err = d.GetInt32(); err != nil {
		return r, err
	}
	return r, nil
}

// PreadRequest implements positional read.
type PreadRequest struct {
	Handle int32
	Count  uint32
	Offset int64
}

func (r PreadRequest) Encode(e *wire.Encoder) {
	e.PutInt32(r.Handle)
	e.PutUint32(r.Count)
	e.PutInt64(r.Offset)
}

func DecodePreadRequest(d *wire.Decoder) (PreadRequest, error) {
	var r PreadRequest
	var err error
	if r.Handle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Count, err = d.GetUint32(); err != nil {
		return r, err
	}
	if r.Offset, err = d.GetInt64(); err != nil {
		return r, err
	}
	return r, nil
}

// WriteRequest implements write.
type WriteRequest struct {
	Handle int32
	Data   []byte
}

func (r WriteRequest) Encode(e *wire.Encoder) {
	e.PutInt32(r.Handle)
	e.PutBytes(r.Data)
}

func DecodeWriteRequest(d *wire.Decoder) (WriteRequest, error) {
	var r WriteRequest
	var err error
	if r.Handle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Data, err = d.GetBytes(MaxPayload); err != nil {
		return r, err
	}
	return r, nil
}

// WriteResponse is shared by Write and Pwrite.
type WriteResponse struct {
	Result int32
	Err    int32
}

func (r WriteResponse) Encode(e *wire.Encoder) {
	e.PutInt32(r.Result)
	e.PutInt32(r.Err)
}

func DecodeWriteResponse(d *wire.Decoder) (WriteResponse, error) {
	var r WriteResponse
	var err error
	if r.Result, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Err, err = d.GetInt32(); err != nil {
		return r, err
	}
	return r, nil
}

// PwriteRequest implements positional write.
type PwriteRequest struct {
	Handle int32
	Data   []byte
	Offset int64
}

func (r PwriteRequest) Encode(e *wire.Encoder) {
	e.PutInt32(r.Handle)
	e.PutBytes(r.Data)
	e.PutInt64(r.Offset)
}

func DecodePwriteRequest(d *wire.Decoder) (PwriteRequest, error) {
	var r PwriteRequest
	var err error
	if r.Handle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Data, err = d.GetBytes(MaxPayload); err != nil {
		return r, err
	}
	if r.Offset, err = d.GetInt64(); err != nil {
		return r, err
	}
	return r, nil
}

// StatRequest implements stat-by-path.
type StatRequest struct {
	Path string
}

func (r StatRequest) Encode(e *wire.Encoder) { e.PutString(r.Path) }

func DecodeStatRequest(d *wire.Decoder) (StatRequest, error) {
	p, err := d.GetString(MaxPath)
	return StatRequest{Path: p}, err
}

// StatResponse is shared by all stat-family procedures.
type StatResponse struct {
	Stat   Stat
	Result int32
	Err    int32
}

func (r StatResponse) Encode(e *wire.Encoder) {
	r.Stat.Encode(e)
	e.PutInt32(r.Result)
	e.PutInt32(r.Err)
}

func DecodeStatResponse(d *wire.Decoder) (StatResponse, error) {
	var r StatResponse
	var err error
	if r.Stat, err = DecodeStat(d); err != nil {
		return r, err
	}
	if r.Result, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Err, err = d.GetInt32(); err != nil {
		return r, err
	}
	return r, nil
}

// FstatAtRequest implements stat-by-directory-handle-plus-path.
type FstatAtRequest struct {
	DirHandle int32
	Path      string
	Flags     int32
}

func (r FstatAtRequest) Encode(e *wire.Encoder) {
	e.PutInt32(r.DirHandle)
	e.PutString(r.Path)
	e.PutInt32(r.Flags)
}

func DecodeFstatAtRequest(d *wire.Decoder) (FstatAtRequest, error) {
	var r FstatAtRequest
	var err error
	if r.DirHandle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Path, err = d.GetString(MaxPath); err != nil {
		return r, err
	}
	if r.Flags, err = d.GetInt32(); err != nil {
		return r, err
	}
	return r, nil
}

// FstatRequest implements stat-by-handle.
type FstatRequest struct {
	Handle int32
}

func (r FstatRequest) Encode(e *wire.Encoder) { e.PutInt32(r.Handle) }

func DecodeFstatRequest(d *wire.Decoder) (FstatRequest, error) {
	h, err := d.GetInt32()
	return FstatRequest{Handle: h}, err
}

// FcntlRequest implements the control operation.
type FcntlRequest struct {
	Handle int32
	Cmd    int32
	Arg    CtlArg
}

func (r FcntlRequest) Encode(e *wire.Encoder) {
	e.PutInt32(r.Handle)
	e.PutInt32(r.Cmd)
	r.Arg.Encode(e)
}

func DecodeFcntlRequest(d *wire.Decoder) (FcntlRequest, error) {
	var r FcntlRequest
	var err error
	if r.Handle, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Cmd, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Arg, err = DecodeCtlArg(d); err != nil {
		return r, err
	}
	return r, nil
}

// FcntlResponse carries the result plus the fourth output-argument union
// described in spec §4.4.
type FcntlResponse struct {
	Result int32
	Err    int32
	Out    CtlArg
}

func (r FcntlResponse) Encode(e *wire.Encoder) {
	e.PutInt32(r.Result)
	e.PutInt32(r.Err)
	r.Out.Encode(e)
}

func DecodeFcntlResponse(d *wire.Decoder) (FcntlResponse, error) {
	var r FcntlResponse
	var err error
	if r.Result, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Err, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Out, err = DecodeCtlArg(d); err != nil {
		return r, err
	}
	return r, nil
}

// FdatasyncRequest implements data-sync.
type FdatasyncRequest struct {
	Handle int32
}

func (r FdatasyncRequest) Encode(e *wire.Encoder) { e.PutInt32(r.Handle) }

func DecodeFdatasyncRequest(d *wire.Decoder) (FdatasyncRequest, error) {
	h, err := d.GetInt32()
	return FdatasyncRequest{Handle: h}, err
}

// FdatasyncResponse is identical in shape to CloseResponse/WriteResponse.
// The server and the shim encode and decode data-sync replies (and close
// replies) as WriteResponse, which is the same bytes on the wire.
type FdatasyncResponse struct {
	Result int32
	Err    int32
}

func (r FdatasyncResponse) Encode(e *wire.Encoder) {
	e.PutInt32(r.Result)
	e.PutInt32(r.Err)
}

func DecodeFdatasyncResponse(d *wire.Decoder) (FdatasyncResponse, error) {
	var r FdatasyncResponse
	var err error
	if r.Result, err = d.GetInt32(); err != nil {
		return r, err
	}
	if r.Err, err = d.GetInt32(); err != nil {
		return r, err
	}
	return r, nil
}
