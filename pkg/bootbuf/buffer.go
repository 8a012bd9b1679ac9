// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bootbuf implements the byte-stream builders used to assemble the
// blocks beastie hands to the FreeBSD kernel across kexec: the kernel
// environment pool, the symbol/string table block, and the MODINFO loader
// metadata stream.
package bootbuf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Buffer is an append-only little-endian byte builder. All multi-byte
// values beastie emits are explicit little-endian, never relying on struct
// packing to pick the host's byte order.
type Buffer struct {
	b []byte
}

// NewBuffer returns an empty Buffer, optionally pre-sized.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written so far.
func (buf *Buffer) Len() int { return len(buf.b) }

// Bytes returns the accumulated bytes. The returned slice aliases the
// Buffer's internal storage and must not be mutated by the caller.
func (buf *Buffer) Bytes() []byte { return buf.b }

// AppendByte appends a single byte.
func (buf *Buffer) AppendByte(v byte) {
	buf.b = append(buf.b, v)
}

// AppendBytes appends a raw byte slice.
func (buf *Buffer) AppendBytes(v []byte) {
	buf.b = append(buf.b, v...)
}

// AppendUint16 appends v as little-endian.
func (buf *Buffer) AppendUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
}

// AppendUint32 appends v as little-endian.
func (buf *Buffer) AppendUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
}

// AppendUint64 appends v as little-endian.
func (buf *Buffer) AppendUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
}

// AppendString appends s followed by a single trailing NUL byte.
func (buf *Buffer) AppendString(s string) {
	buf.b = append(buf.b, s...)
	buf.b = append(buf.b, 0)
}

// AlignTo pads the buffer with zero bytes until its length is a multiple of
// n. n must be a power of two.
func (buf *Buffer) AlignTo(n int) {
	for len(buf.b)%n != 0 {
		buf.b = append(buf.b, 0)
	}
}

// Reader returns an io.ReadSeeker over the accumulated bytes, for
// components that need to re-read what they just staged.
func (buf *Buffer) Reader() io.ReadSeeker {
	return &byteReader{data: buf.b}
}

type byteReader struct {
	data []byte
	pos  int64
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *byteReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = int64(len(r.data)) + offset
	default:
		return 0, fmt.Errorf("bootbuf: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("bootbuf: negative seek position")
	}
	r.pos = abs
	return abs, nil
}

// HexDump writes a simple 8-bytes-per-line hex dump of b to w, labeled with
// name, for -d/-D debug output.
func HexDump(w io.Writer, name string, b []byte) {
	fmt.Fprintf(w, "%s (%d bytes):\n", name, len(b))
	for i := 0; i < len(b); i += 8 {
		end := i + 8
		if end > len(b) {
			end = len(b)
		}
		fmt.Fprintf(w, "  %08x: % x\n", i, b[i:end])
	}
}
