// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trampoline hand-assembles the tiny long-mode x86-64 stub beastie
// places at BootPhys: it loads a flat GDT, builds an identity+high-half
// 2 MiB-page mapping, optionally resets a graphics adapter, and jumps into
// the FreeBSD kernel's entry point with the register state btext expects.
//
// No x86 assembler package appears anywhere in the example corpus for this
// kind of job; the idiom observed instead (u-root's
// pkg/boot/universalpayload trampoline) is to emit raw instruction bytes
// with append() and encoding/binary, patching forward references after the
// fact. This package follows that idiom.
package trampoline

import "fmt"

// Fixed section layout: a 4 KiB text window followed by a 60 KiB data
// window, both loaded starting at BootPhys.
const (
	BootPhys = 0x100000
	TextSize = 0x1000
	DataSize = 0xF000
	PageSize = 0x1000

	// StackSize is the size of the scratch stack the trampoline switches
	// onto before entering long mode paging setup.
	StackSize = 0x1000
)

// Data-section byte offsets, computed once in the order the original
// assembler binds them: GDT, GDTP, then five page-aligned tables, then a
// page-aligned stack.
const (
	offGDT   = 0
	offGDTP  = 32 // 4 qwords
	offPML4T = 0x1000
	offPDPT0 = offPML4T + PageSize
	offPDPT1 = offPDPT0 + PageSize
	offPDT0  = offPDPT1 + PageSize
	// PDT[0] covers 2048 2 MiB low-mapping entries across 4 pages, one
	// page for each of the four PDPT[0] entries (4 GiB in all), matching
	// the original layout.
	offPDT1     = offPDT0 + 4*PageSize
	offStack    = offPDT1 + 2*PageSize
	offStackTop = offStack + StackSize
)

// Assembler builds the trampoline code object for a single boot.
type Assembler struct {
	Btext    uint64 // kernel entry point (virtual address)
	ModuleP  uint64 // metadata physical address (modulep)
	KernEnd  uint64 // end of the placed image (kernend)
	GfxReset []byte // graphics adapter reset code, may be empty

	text   []byte
	data   []byte
	labels map[string]uint64
}

// Code is the finished trampoline: Text followed by Data, both loaded at
// BootPhys.
type Code struct {
	Text []byte
	Data []byte
}

// Bytes concatenates Text and Data into the single flat buffer beastie
// places in the boot kexec segment.
func (c Code) Bytes() []byte {
	out := make([]byte, 0, len(c.Text)+len(c.Data))
	out = append(out, c.Text...)
	out = append(out, c.Data...)
	return out
}

// ErrAssembler is returned for internal consistency failures that should
// never occur given well-formed inputs (e.g. the generated code overflowing
// its fixed section window).
type ErrAssembler struct {
	Message string
}

func (e *ErrAssembler) Error() string { return "trampoline: " + e.Message }

// Assemble builds the trampoline code object.
func (a *Assembler) Assemble() (Code, error) {
	if a.KernEnd <= a.ModuleP {
		return Code{}, &ErrAssembler{Message: "kernend must be greater than modulep"}
	}

	a.labels = dataLabels()
	a.data = make([]byte, DataSize)
	assembleData(a.data)

	a.text = make([]byte, 0, TextSize)
	if err := a.assembleText(); err != nil {
		return Code{}, err
	}
	if len(a.text) > TextSize {
		return Code{}, &ErrAssembler{Message: "generated text overflows its reserved 4 KiB window"}
	}
	a.text = append(a.text, make([]byte, TextSize-len(a.text))...)

	return Code{Text: a.text, Data: a.data}, nil
}

// dataLabels returns the absolute runtime addresses of every named label
// bound in the data section.
func dataLabels() map[string]uint64 {
	base := uint64(BootPhys + TextSize)
	return map[string]uint64{
		"GDT":      base + offGDT,
		"GDTP":     base + offGDTP,
		"PML4T":    base + offPML4T,
		"PDPT0":    base + offPDPT0,
		"PDPT1":    base + offPDPT1,
		"PDT0":     base + offPDT0,
		"PDT1":     base + offPDT1,
		"stackTop": base + offStackTop,
	}
}

// Debug renders the label table and section sizes, for -d/-D output.
func (a *Assembler) Debug() string {
	out := "=========================================\n"
	out += fmtLine("text", uint64(BootPhys), uint64(len(a.text)))
	out += fmtLine("data", uint64(BootPhys+TextSize), uint64(len(a.data)))
	out += "=========================================\n"
	out += fmtAddr("btext", a.Btext)
	for _, name := range []string{"GDT", "GDTP", "PML4T", "PDPT0", "PDPT1", "PDT0", "PDT1", "stackTop"} {
		out += fmtAddr(name, a.labels[name])
	}
	out += "=========================================\n"
	return out
}

func fmtLine(name string, base, size uint64) string {
	return fmt.Sprintf("segment: [mem %08x-%08x] %s\n", base, base+size-1, name)
}

func fmtAddr(name string, addr uint64) string {
	return fmt.Sprintf("%-12s| %016x\n", name, addr)
}
