// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gfxreset builds the tiny real-mode-free x86 code sequences the
// trampoline embeds to reset a graphics adapter's mode registers before
// handing control to the FreeBSD kernel, which otherwise inherits whatever
// mode Linux's own driver left the hardware in.
package gfxreset

// Emitter describes a graphics adapter capable of emitting a mode-reset
// instruction sequence. Only one Emitter is ever active for a given boot:
// the control driver selects it by matching the probed framebuffer's id
// string, per original_source/bootassembler.cxx's fb.id gate.
type Emitter interface {
	// Present reports whether this emitter's adapter is the one that was
	// probed on this host.
	Present() bool
	// Base returns the adapter's framebuffer physical base address.
	Base() uintptr
	// AssembleReset returns the x86 instruction bytes that reprogram the
	// adapter for the given mode. It may be empty.
	AssembleReset(width, height int) []byte
}

// NoOp is the emitter used for adapters (Intel i915, generic VGA) that
// don't need their mode state poked before the FreeBSD kernel takes over:
// mirrors original_source/ci915gfx.cxx, whose assembleReset is always
// empty.
type NoOp struct {
	id       string
	phys     uintptr
	expectID string
}

// NewIntelNoOp returns a NoOp gated on the "i915drmfb" framebuffer id.
func NewIntelNoOp(id string, phys uintptr) *NoOp {
	return &NoOp{id: id, phys: phys, expectID: "i915drmfb"}
}

// Present implements Emitter.
func (n *NoOp) Present() bool { return n.id == n.expectID }

// Base implements Emitter.
func (n *NoOp) Base() uintptr { return n.phys }

// AssembleReset implements Emitter; the Intel path never needs to reset
// anything, so the in-kernel code required to do so is empty.
func (n *NoOp) AssembleReset(width, height int) []byte { return nil }
