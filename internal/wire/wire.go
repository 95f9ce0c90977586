// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the value-layer encoding rules shared by every
// procedure in the protocol: big-endian fixed-width integers, 4-byte-aligned
// length-prefixed byte strings, and tagged discriminated unions. It has no
// notion of procedures, connections, or dispatch — those live in rpcproto,
// transport, and server.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by Decoder methods when the underlying buffer
// does not contain enough bytes to satisfy the read.
var ErrShortBuffer = errors.New("wire: short buffer")

// Encoder appends protocol values to an in-memory buffer in wire order.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with a pre-sized backing buffer.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded buffer built so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// PutUint32 appends a big-endian 32-bit unsigned integer.
func (e *Encoder) PutUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// PutInt32 appends a big-endian signed 32-bit integer.
func (e *Encoder) PutInt32(v int32) { e.PutUint32(uint32(v)) }

// PutUint64 appends a big-endian 64-bit unsigned integer.
func (e *Encoder) PutUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// PutInt64 appends a big-endian signed 64-bit integer.
func (e *Encoder) PutInt64(v int64) { e.PutUint64(uint64(v)) }

// PutBytes appends a 4-byte length prefix, the bytes themselves, and 0-3
// zero padding bytes so the total occupies a multiple of 4 bytes.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	if pad := padLen(len(b)); pad > 0 {
		var zeros [3]byte
		e.buf = append(e.buf, zeros[:pad]...)
	}
}

// PutString appends a string using the same length-prefix-and-pad rule as
// PutBytes.
func (e *Encoder) PutString(s string) { e.PutBytes([]byte(s)) }

// PutTag appends a 4-byte discriminated-union tag. The variant body, if any,
// follows as ordinary fields.
func (e *Encoder) PutTag(tag uint32) { e.PutUint32(tag) }

// PutRaw appends already-encoded bytes verbatim, with no length prefix or
// padding. It is used to splice a separately encoded body after a header.
func (e *Encoder) PutRaw(b []byte) { e.buf = append(e.buf, b...) }

// Decoder consumes protocol values from a buffer in wire order.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder wraps buf for sequential decoding. buf is not copied or
// retained beyond the lifetime of the Decoder's caller.
func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// Remaining reports how many undecoded bytes are left.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, d.Remaining())
	}
	return nil
}

// GetUint32 decodes a big-endian 32-bit unsigned integer.
func (d *Decoder) GetUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

// GetInt32 decodes a big-endian signed 32-bit integer.
func (d *Decoder) GetInt32() (int32, error) {
	v, err := d.GetUint32()
	return int32(v), err
}

// GetUint64 decodes a big-endian 64-bit unsigned integer.
func (d *Decoder) GetUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

// GetInt64 decodes a big-endian signed 64-bit integer.
func (d *Decoder) GetInt64() (int64, error) {
	v, err := d.GetUint64()
	return int64(v), err
}

// GetBytes decodes a length-prefixed, zero-padded byte string. The returned
// slice is a fresh copy, safe to retain past the Decoder's lifetime.
func (d *Decoder) GetBytes(maxLen int) ([]byte, error) {
	n, err := d.GetUint32()
	if err != nil {
		return nil, err
	}
	if maxLen > 0 && int(n) > maxLen {
		return nil, fmt.Errorf("wire: byte string of %d exceeds limit %d", n, maxLen)
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+int(n)])
	d.off += int(n)
	pad := padLen(int(n))
	if err := d.need(pad); err != nil {
		return nil, err
	}
	d.off += pad
	return out, nil
}

// GetString decodes a length-prefixed, zero-padded string.
func (d *Decoder) GetString(maxLen int) (string, error) {
	b, err := d.GetBytes(maxLen)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetTag decodes a 4-byte discriminated-union tag.
func (d *Decoder) GetTag() (uint32, error) { return d.GetUint32() }

// padLen returns the number of zero bytes (0-3) needed to round n up to a
// multiple of 4.
func padLen(n int) int {
	if r := n % 4; r != 0 {
		return 4 - r
	}
	return 0
}
