// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout computes the fixed physical placement plan for beastie's
// kexec segments and produces the segment descriptors the kexec syscall
// boundary consumes.
package layout

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Fixed physical placement constants.
const (
	BootPhys = 0x100000 // trampoline
	KernPhys = 0x200000 // kernel image

	pageSize = 4096
)

func roundUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// Plan is the physical placement of every block beastie hands across
// kexec, computed by chaining each block's page-rounded size onto the
// previous block's physical base.
type Plan struct {
	KernPhys uint64
	SymPhys  uint64
	EnvPhys  uint64
	FontPhys uint64
	MetaPhys uint64
	BootPhys uint64

	// KernEnd is the first physical address past the last placed block
	// (the metadata block), passed to the kernel as modulep_end.
	KernEnd uint64
}

// Compute derives a Plan from the sizes of the kernel, symbols,
// environment, font, and metadata blocks, in that placement order.
func Compute(kernSize, symSize, envSize, fontSize, metaSize uint64) Plan {
	p := Plan{BootPhys: BootPhys, KernPhys: KernPhys}
	p.SymPhys = p.KernPhys + roundUp(kernSize, pageSize)
	p.EnvPhys = p.SymPhys + roundUp(symSize, pageSize)
	p.FontPhys = p.EnvPhys + roundUp(envSize, pageSize)
	p.MetaPhys = p.FontPhys + roundUp(fontSize, pageSize)
	p.KernEnd = p.MetaPhys + roundUp(metaSize, pageSize)
	return p
}

// Segment is a single kexec segment: buf is copied into the running
// kernel's memory at Mem, padded with zeros up to MemSize.
type Segment struct {
	Name    string
	Buf     []byte
	Mem     uint64
	MemSize uint64
}

func (s Segment) String() string {
	return fmt.Sprintf("%-10s mem=0x%08x memsz=0x%08x bufsz=0x%08x", s.Name, s.Mem, s.MemSize, len(s.Buf))
}

// Segments builds the fixed-order kexec segment list — kernel, symbols,
// env, meta, boot, font — including only the blocks that are non-empty,
// exactly as original_source/bootloader.cxx:prepareSegments does.
func Segments(p Plan, kernel, sym, env, meta, boot, font []byte) []Segment {
	var segs []Segment
	add := func(name string, buf []byte, phys uint64) {
		if len(buf) == 0 {
			return
		}
		segs = append(segs, Segment{
			Name:    name,
			Buf:     buf,
			Mem:     phys,
			MemSize: roundUp(uint64(len(buf)), pageSize),
		})
	}
	add("kernel", kernel, p.KernPhys)
	add("sym", sym, p.SymPhys)
	add("env", env, p.EnvPhys)
	add("meta", meta, p.MetaPhys)
	add("boot", boot, p.BootPhys)
	add("font", font, p.FontPhys)
	return segs
}

// DebugTable renders the kexec segment list for -d/-D debug output.
func DebugTable(w io.Writer, segs []Segment) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"segment", "mem", "memsz", "bufsz"})
	for _, s := range segs {
		t.AppendRow(table.Row{
			s.Name,
			fmt.Sprintf("0x%08x", s.Mem),
			humanize.Bytes(s.MemSize),
			humanize.Bytes(uint64(len(s.Buf))),
		})
	}
	t.Render()
}
