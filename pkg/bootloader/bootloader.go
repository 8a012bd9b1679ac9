// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bootloader is beastie's control driver: it owns the sequence of
// probes, loads, and assembly steps that turn a FreeBSD kernel image and
// font file into a set of kexec segments, and the final handoff that boots
// into them. Mirrors original_source/bootloader.cxx/.hxx.
package bootloader

import (
	"fmt"
	"io"
	"os"

	"github.com/philmb3487/beastie-boot/pkg/bootbuf"
	"github.com/philmb3487/beastie-boot/pkg/elfkernel"
	"github.com/philmb3487/beastie-boot/pkg/gfxreset"
	"github.com/philmb3487/beastie-boot/pkg/hostboot"
	"github.com/philmb3487/beastie-boot/pkg/layout"
	"github.com/philmb3487/beastie-boot/pkg/log"
	"github.com/philmb3487/beastie-boot/pkg/trampoline"
	"github.com/philmb3487/beastie-boot/pkg/vfont"
)

// IoError wraps a failure to read a file beastie was told to load.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// FormatError is returned when a loaded file fails validation.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return e.Reason }

// AssemblerError wraps a trampoline assembly failure.
type AssemblerError struct {
	Message string
}

func (e *AssemblerError) Error() string { return e.Message }

// UsageError is returned for a missing or malformed invocation (no root
// path, conflicting flags).
type UsageError struct{}

func (UsageError) Error() string { return "usage error" }

// PrivilegeError is returned when beastie is run without root privileges.
type PrivilegeError struct{}

func (PrivilegeError) Error() string {
	return "this operation requires root privileges; please run as root or use sudo"
}

// Bootloader drives one boot attempt end to end: probing the host,
// staging the kernel/font/metadata blocks, and performing the kexec
// handoff.
type Bootloader struct {
	debug bool
	howto uint32
	force bool

	efi bool
	fb  *hostboot.Framebuffer

	rsdp, rsdt uint64
	smap       []hostboot.SMAPEntry
	efimap     []hostboot.EFIMapEntry

	env  *bootbuf.EnvWriter
	meta *bootbuf.MetaWriter
	sym  *bootbuf.SymWriter

	kernel    *elfkernel.Kernel
	fontBlock []byte

	plan     layout.Plan
	bootCode trampoline.Code

	gfx gfxreset.Emitter

	kexec hostboot.Kexec
}

// New probes the host (EFI status, framebuffer, memory map, ACPI) and
// returns a Bootloader ready to load a kernel and font, mirroring
// beastie::Bootloader's constructor.
func New() (*Bootloader, error) {
	bl := &Bootloader{
		env:  bootbuf.NewEnvWriter(),
		meta: bootbuf.NewMetaWriter(),
		sym:  bootbuf.NewSymWriter(),
	}

	// The kexec slot is a process-wide singleton; treat anything already
	// staged there as garbage from a prior run and discard it before this
	// instance stages its own image.
	if err := bl.kexec.Unload(); err != nil {
		log.Warnf("unload of a previously staged kexec image failed: %v", err)
	}

	bl.efi = hostboot.IsEFI()

	fb, err := hostboot.ProbeFramebuffer()
	if err != nil {
		return nil, err
	}
	bl.fb = fb

	bl.smap, err = hostboot.FetchMemoryMap()
	if err != nil {
		return nil, err
	}
	bl.efimap, err = hostboot.FetchEFIMemoryMap()
	if err != nil {
		return nil, err
	}

	bl.rsdp, bl.rsdt, err = hostboot.FetchACPI(bl.efi)
	if err != nil {
		return nil, err
	}

	bl.writeDefaultEnv()
	bl.setDefaultResolution()
	bl.selectGfxEmitter()

	return bl, nil
}

// SetDebug toggles verbose progress and segment dumps.
func (bl *Bootloader) SetDebug(debug bool) { bl.debug = debug }

// SetHowto sets the RB_* flags word passed to the FreeBSD kernel.
func (bl *Bootloader) SetHowto(howto uint32) { bl.howto = howto }

// SetForce selects an immediate forced reboot over a graceful shutdown(8)
// invocation at Boot time.
func (bl *Bootloader) SetForce(force bool) { bl.force = force }

// setDefaultResolution overrides the probed framebuffer geometry with a
// fixed 1024x768, exactly as beastie::Bootloader::setDefaultResolution
// does. This discards whatever resolution was actually probed; see
// DESIGN.md for why the behavior is preserved rather than corrected.
func (bl *Bootloader) setDefaultResolution() {
	bl.fb.Width = 1024
	bl.fb.Height = 768
}

// selectGfxEmitter picks the graphics reset emitter matching the probed
// framebuffer's id string: "i915drmfb" selects the Intel no-op, and
// "vmwgfxdrmfb" selects the VMware SVGA II emitter when the PCI probe finds
// the adapter. Any other id, or a VMware id with no adapter found, gets a
// no-op.
func (bl *Bootloader) selectGfxEmitter() {
	intel := gfxreset.NewIntelNoOp(bl.fb.ID, uintptr(bl.fb.Phys))
	if intel.Present() {
		bl.gfx = intel
		return
	}

	if bl.fb.ID == "vmwgfxdrmfb" {
		present, ioBase, err := hostboot.ProbeVMwareSVGA()
		if err == nil && present {
			bl.gfx = gfxreset.NewSvga(true, ioBase, uintptr(bl.fb.Phys))
			return
		}
	}

	bl.gfx = gfxreset.NewIntelNoOp(bl.fb.ID, uintptr(bl.fb.Phys))
}

// writeDefaultEnv seeds the kernel environment with the RSDP/RSDT pointers
// and a fixed serial console hint, matching
// beastie::Bootloader::writeDefaultEnv.
func (bl *Bootloader) writeDefaultEnv() {
	bl.env.Add("acpi.rsdp", fmt.Sprintf("0x%x", bl.rsdp))
	bl.env.Add("acpi.rsdt", fmt.Sprintf("0x%x", bl.rsdt))
	bl.env.Add("hint.uart.0.at", "acpi")
	bl.env.Add("hint.uart.0.port", "0x3f8")
	bl.env.Add("hint.uart.0.flags", "0x10")
}

// FontLoad reads and parses the console font at path. It must be called
// before FileLoad, since FileLoad computes the metadata block's physical
// layout and the font occupies a fixed slot in that layout.
func (bl *Bootloader) FontLoad(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &IoError{Path: path, Err: err}
	}
	block, err := vfont.Load(raw)
	if err != nil {
		return err
	}
	bl.fontBlock = block
	log.Debugf("font loaded: %d bytes", len(block))
	return nil
}

// FileLoad reads and parses the ELF kernel at path, computes the physical
// placement plan for every block, writes the loader metadata stream, and
// assembles the boot trampoline.
func (bl *Bootloader) FileLoad(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &IoError{Path: path, Err: err}
	}

	kern, err := elfkernel.Load(raw)
	if err != nil {
		return err
	}
	bl.kernel = kern

	if len(kern.SymTab) > 0 {
		bl.sym.AddSymTab(kern.SymTab)
	}
	if len(kern.StrTab) > 0 {
		bl.sym.AddStrTab(kern.StrTab)
	}

	bl.plan = layout.Compute(
		uint64(len(kern.Block)),
		uint64(bl.sym.Len()),
		uint64(len(bl.env.Bytes())),
		uint64(len(bl.fontBlock)),
		0, // metadata size isn't known until writeMetadata below
	)

	bl.writeMetadata()

	// Recompute with the metadata block's real size now that it exists.
	bl.plan = layout.Compute(
		uint64(len(kern.Block)),
		uint64(bl.sym.Len()),
		uint64(len(bl.env.Bytes())),
		uint64(len(bl.fontBlock)),
		uint64(len(bl.meta.Bytes())),
	)

	var gfxCode []byte
	if bl.gfx != nil {
		gfxCode = bl.gfx.AssembleReset(int(bl.fb.Width), int(bl.fb.Height))
	}

	asm := &trampoline.Assembler{
		Btext:    kern.Entry,
		ModuleP:  bl.plan.MetaPhys,
		KernEnd:  bl.plan.KernEnd,
		GfxReset: gfxCode,
	}
	code, err := asm.Assemble()
	if err != nil {
		return &AssemblerError{Message: err.Error()}
	}
	bl.bootCode = code

	if bl.debug {
		log.Debugf("%s", asm.Debug())
	}
	return nil
}

// writeMetadata rebuilds the MODINFO metadata stream from everything
// probed and loaded so far, matching beastie::Bootloader::writeMetadata.
func (bl *Bootloader) writeMetadata() {
	bl.meta = bootbuf.NewMetaWriter()

	bl.meta.AddName("/boot/kernel/kernel")
	bl.meta.AddType("elf kernel")
	bl.meta.AddAddr(bl.plan.KernPhys)
	bl.meta.AddSize(uint64(len(bl.kernel.Block)))

	symEnd := bl.plan.SymPhys + uint64(bl.sym.Len())
	bl.meta.Metadata64(bootbuf.ModInfoMdSsym, bl.plan.SymPhys)
	bl.meta.Metadata64(bootbuf.ModInfoMdEsym, symEnd)
	bl.meta.Metadata64(bootbuf.ModInfoMdEnvp, bl.plan.EnvPhys)
	bl.meta.Metadata32(bootbuf.ModInfoMdHowto, bl.howto)
	bl.meta.Metadata64(bootbuf.ModInfoMdFwHandle, bl.rsdp)

	if !bl.efi {
		bl.meta.MetadataSpan(bootbuf.ModInfoMdSmap, encodeSMAP(bl.smap))
	} else {
		bl.meta.MetadataSpan(bootbuf.ModInfoMdEfiMap, encodeEFIMap(bl.efimap))
	}

	bl.meta.MetadataSpan(bootbuf.ModInfoMdEfiFb, encodeEFIFramebuffer(bl.fb))
	bl.meta.Metadata64(bootbuf.ModInfoMdFont, bl.plan.FontPhys)

	bl.meta.AddEnd()
}

// Boot performs the kexec handoff and then either shuts down gracefully or
// forces an immediate reboot, depending on SetForce.
func (bl *Bootloader) Boot() error {
	if err := bl.Load(); err != nil {
		return err
	}
	if bl.force {
		return hostboot.ForcedShutdown()
	}
	return hostboot.Shutdown()
}

// Load stages every kexec segment with the running kernel.
func (bl *Bootloader) Load() error {
	segs := bl.segments()
	if bl.debug {
		layout.DebugTable(os.Stderr, segs)
	}
	return bl.kexec.Load(layout.BootPhys, segs)
}

// Unload tears down any previously staged kexec image.
func (bl *Bootloader) Unload() error {
	return bl.kexec.Unload()
}

func (bl *Bootloader) segments() []layout.Segment {
	return layout.Segments(bl.plan,
		bl.kernel.Block,
		bl.sym.Bytes(),
		bl.env.Bytes(),
		bl.meta.Bytes(),
		bl.bootCode.Bytes(),
		bl.fontBlock,
	)
}

// DebugDump writes a full hex dump of every staged block to w, for -D.
func (bl *Bootloader) DebugDump(w io.Writer) {
	bootbuf.HexDump(w, "env", bl.env.Bytes())
	bootbuf.HexDump(w, "meta", bl.meta.Bytes())
	bootbuf.HexDump(w, "sym", bl.sym.Bytes())
}
