// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gfxreset

import "encoding/binary"

// VMware SVGA II register indices, from original_source/cvmwaregfx.hxx.
const (
	svgaRegID             = 0
	svgaRegEnable         = 1
	svgaRegWidth          = 2
	svgaRegHeight         = 3
	svgaRegMaxWidth       = 4
	svgaRegMaxHeight      = 5
	svgaRegDepth          = 6
	svgaRegBitsPerPixel   = 7
	svgaRegPseudoColor    = 8
	svgaRegRedMask        = 9
	svgaRegGreenMask      = 10
	svgaRegBlueMask       = 11
	svgaRegBytesPerLine   = 12
	svgaRegFBStart        = 13
	svgaRegFBOffset       = 14
	svgaRegVRAMSize       = 15
	svgaRegFBSize         = 16
)

// PCI identity of the VMware SVGA II virtual device.
const (
	VendorVMware  = 0x15ad
	DeviceSVGAII  = 0x0405
)

// Svga is the VMware SVGA II graphics reset emitter: it reprograms the
// adapter's mode registers directly through its I/O port BAR, mirroring
// original_source/cvmwaregfx.cxx.
type Svga struct {
	present  bool
	ioBase   uint16
	fbBase   uintptr
}

// NewSvga returns an Svga gated on whether a VMware SVGA II device was
// found on the PCI bus, with ioBase its I/O port BAR0 base and fbBase its
// reported framebuffer start address.
func NewSvga(present bool, ioBase uint16, fbBase uintptr) *Svga {
	return &Svga{present: present, ioBase: ioBase, fbBase: fbBase}
}

// Present implements Emitter.
func (s *Svga) Present() bool { return s.present }

// Base implements Emitter.
func (s *Svga) Base() uintptr { return s.fbBase }

// AssembleReset implements Emitter. It emits, in order: ENABLE=0,
// WIDTH=width, HEIGHT=height, BITS_PER_PIXEL=32, BYTES_PER_LINE=height*4,
// ENABLE=1 — the ID register write the original leaves commented out is
// correspondingly absent here.
func (s *Svga) AssembleReset(width, height int) []byte {
	var code []byte
	outl := func(value uint32, port uint16) {
		// mov eax, value
		code = append(code, 0xb8)
		var tmp4 [4]byte
		binary.LittleEndian.PutUint32(tmp4[:], value)
		code = append(code, tmp4[:]...)
		// mov edx, port (zero-extended)
		code = append(code, 0xba)
		binary.LittleEndian.PutUint32(tmp4[:], uint32(port))
		code = append(code, tmp4[:]...)
		// out dx, eax
		code = append(code, 0xef)
	}
	write := func(reg uint32, value uint32) {
		outl(reg, s.ioBase)
		outl(value, s.ioBase+1)
	}

	write(svgaRegEnable, 0)
	write(svgaRegWidth, uint32(width))
	write(svgaRegHeight, uint32(height))
	write(svgaRegBitsPerPixel, 32)
	write(svgaRegBytesPerLine, uint32(height*4))
	write(svgaRegEnable, 1)

	return code
}
