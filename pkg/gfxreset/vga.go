// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gfxreset

import "encoding/binary"

// portOp is one step of the legacy VGA reset sequence: either an 8-bit
// input, an 8-bit output, or a (nominally) 16-bit output that the original
// implementation narrows to 8 bits before issuing (see AssembleLegacyReset
// below).
type portOp struct {
	kind uint8 // 0=inb, 1=outb, 2=outw
	port uint16
	val  uint16
}

const (
	opIn   = 0
	opOutB = 1
	opOutW = 2
)

// legacyVGAReset is the exact register-write sequence
// original_source/bootassembler.cxx:resetVGA performs, transcribed
// operation-for-operation. It is not currently reachable from any selected
// Emitter — FreeBSD's loader only ever gates a VGA reset on id string, and
// no probed id currently maps to this path — but it must stay byte-for-byte
// reproducible if that ever changes, so it lives here as data rather than
// being deleted.
var legacyVGAReset = buildLegacyVGAReset()

func buildLegacyVGAReset() []portOp {
	ops := []portOp{
		{opIn, 0x3da, 0},
		{opOutB, 0x3c0, 0},
		{opOutW, 0x3c4, 0x0300},
		{opOutW, 0x3c4, 0x0001},
		{opOutW, 0x3c4, 0x0302},
		{opOutW, 0x3c4, 0x0003},
		{opOutW, 0x3c4, 0x0204},
		{opOutW, 0x3d4, 0x0e11},
		{opOutW, 0x3d4, 0x5f00},
		{opOutW, 0x3d4, 0x4f01},
		{opOutW, 0x3d4, 0x5002},
		{opOutW, 0x3d4, 0x8203},
		{opOutW, 0x3d4, 0x5504},
		{opOutW, 0x3d4, 0x8105},
		{opOutW, 0x3d4, 0xbf06},
		{opOutW, 0x3d4, 0x1f07},
		{opOutW, 0x3d4, 0x0008},
		{opOutW, 0x3d4, 0x4f09},
		{opOutW, 0x3d4, 0x200a},
		{opOutW, 0x3d4, 0x0e0b},
		{opOutW, 0x3d4, 0x000c},
		{opOutW, 0x3d4, 0x000d},
		{opOutW, 0x3d4, 0x010e},
		{opOutW, 0x3d4, 0xe00f},
		{opOutW, 0x3d4, 0x9c10},
		{opOutW, 0x3d4, 0x8e11},
		{opOutW, 0x3d4, 0x8f12},
		{opOutW, 0x3d4, 0x2813},
		{opOutW, 0x3d4, 0x1f14},
		{opOutW, 0x3d4, 0x9615},
		{opOutW, 0x3d4, 0xb916},
		{opOutW, 0x3d4, 0xa317},
		{opOutW, 0x3d4, 0xff18},
		{opOutW, 0x3ce, 0x0000},
		{opOutW, 0x3ce, 0x0001},
		{opOutW, 0x3ce, 0x0002},
		{opOutW, 0x3ce, 0x0003},
		{opOutW, 0x3ce, 0x0004},
		{opOutW, 0x3ce, 0x1005},
		{opOutW, 0x3ce, 0x0e06},
		{opOutW, 0x3ce, 0x0007},
		{opOutW, 0x3ce, 0xff08},
	}
	// Attribute controller: 21 (index, value) pairs at port 0x3c0, each
	// preceded by a read of the input-status-1 register (0x3da) to reset
	// its address/data flip-flop.
	attr := [][2]uint8{
		{0x00, 0x00}, {0x01, 0x01}, {0x02, 0x02}, {0x03, 0x03},
		{0x04, 0x04}, {0x05, 0x05}, {0x06, 0x14}, {0x07, 0x07},
		{0x08, 0x38}, {0x09, 0x39}, {0x0a, 0x3a}, {0x0b, 0x3b},
		{0x0c, 0x3c}, {0x0d, 0x3d}, {0x0e, 0x3e}, {0x0f, 0x3f},
		{0x10, 0x0c}, {0x11, 0x00}, {0x12, 0x0f}, {0x13, 0x08},
		{0x14, 0x00},
	}
	for _, pair := range attr {
		ops = append(ops,
			portOp{opIn, 0x3da, 0},
			portOp{opOutB, 0x3c0, uint16(pair[0])},
			portOp{opOutB, 0x3c0, uint16(pair[1])},
		)
	}
	ops = append(ops,
		portOp{opIn, 0x3da, 0},
		portOp{opOutB, 0x3c0, 0x20},
	)
	return ops
}

// AssembleLegacyReset encodes legacyVGAReset as raw x86 instruction bytes:
//
//	inb(port):       mov dx, port   ; in  al, dx
//	outb(val, port): mov dx, port   ; mov al, val ; out dx, al
//	outw(val, port): mov dx, port   ; mov ax, val ; out dx, al
//
// The outw encoding narrows its output to al exactly as the original's
// "outw" lambda does (it loads ax but still issues a single-byte "out dx,
// al") — a quirk of the source this is grounded on, preserved rather than
// corrected.
func AssembleLegacyReset() []byte {
	var code []byte
	movDX := func(port uint16) {
		code = append(code, 0x66, 0xba)
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], port)
		code = append(code, tmp[:]...)
	}
	for _, op := range legacyVGAReset {
		switch op.kind {
		case opIn:
			movDX(op.port)
			code = append(code, 0xec) // in al, dx
		case opOutB:
			movDX(op.port)
			code = append(code, 0xb0, byte(op.val)) // mov al, imm8
			code = append(code, 0xee)                // out dx, al
		case opOutW:
			movDX(op.port)
			code = append(code, 0x66, 0xb8) // mov ax, imm16
			var tmp [2]byte
			binary.LittleEndian.PutUint16(tmp[:], op.val)
			code = append(code, tmp[:]...)
			code = append(code, 0xee) // out dx, al
		}
	}
	return code
}
