// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"
)

func TestUint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0x7fffffff, 0x80000000, 0xffffffff} {
		e := NewEncoder(4)
		e.PutUint32(v)
		d := NewDecoder(e.Bytes())
		got, err := d.GetUint32()
		if err != nil {
			t.Fatalf("GetUint32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("GetUint32 = %d, want %d", got, v)
		}
		if d.Remaining() != 0 {
			t.Errorf("Remaining = %d, want 0", d.Remaining())
		}
	}
}

func TestInt64RoundTrip(t *testing.T) {
	for _, v := range []int64{0, -1, 1 << 40, -(1 << 40)} {
		e := NewEncoder(8)
		e.PutInt64(v)
		d := NewDecoder(e.Bytes())
		got, err := d.GetInt64()
		if err != nil {
			t.Fatalf("GetInt64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("GetInt64 = %d, want %d", got, v)
		}
	}
}

func TestBytesPadding(t *testing.T) {
	cases := []struct {
		data     []byte
		wireLen  int // 4 (length) + data + padding
	}{
		{[]byte{}, 4},
		{[]byte{1}, 4 + 4},
		{[]byte{1, 2}, 4 + 4},
		{[]byte{1, 2, 3}, 4 + 4},
		{[]byte{1, 2, 3, 4}, 4 + 4},
		{[]byte{1, 2, 3, 4, 5}, 4 + 8},
	}
	for _, c := range cases {
		e := NewEncoder(16)
		e.PutBytes(c.data)
		if len(e.Bytes()) != c.wireLen {
			t.Errorf("len(%d bytes) wire = %d, want %d", len(c.data), len(e.Bytes()), c.wireLen)
		}
		if len(e.Bytes())%4 != 0 {
			t.Errorf("wire length %d is not 4-byte aligned", len(e.Bytes()))
		}
		d := NewDecoder(e.Bytes())
		got, err := d.GetBytes(0)
		if err != nil {
			t.Fatalf("GetBytes: %v", err)
		}
		if !bytes.Equal(got, c.data) {
			t.Errorf("GetBytes = %v, want %v", got, c.data)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	s := "Hello from intercepted syscalls! This is a test message."
	e := NewEncoder(64)
	e.PutString(s)
	d := NewDecoder(e.Bytes())
	got, err := d.GetString(0)
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if got != s {
		t.Errorf("GetString = %q, want %q", got, s)
	}
}

func TestGetBytesExceedsLimit(t *testing.T) {
	e := NewEncoder(16)
	e.PutBytes(make([]byte, 100))
	d := NewDecoder(e.Bytes())
	if _, err := d.GetBytes(10); err == nil {
		t.Fatal("GetBytes: expected error for payload exceeding limit")
	}
}

func TestShortBuffer(t *testing.T) {
	d := NewDecoder([]byte{0, 0})
	if _, err := d.GetUint32(); err == nil {
		t.Fatal("GetUint32: expected short-buffer error")
	}
}

func TestUnionTagDiscriminates(t *testing.T) {
	e := NewEncoder(8)
	e.PutTag(1)
	e.PutInt32(42)
	d := NewDecoder(e.Bytes())
	tag, err := d.GetTag()
	if err != nil {
		t.Fatalf("GetTag: %v", err)
	}
	if tag != 1 {
		t.Fatalf("tag = %d, want 1", tag)
	}
	v, err := d.GetInt32()
	if err != nil || v != 42 {
		t.Fatalf("GetInt32 = %d, %v, want 42, nil", v, err)
	}
}
