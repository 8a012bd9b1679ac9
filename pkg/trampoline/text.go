// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trampoline

import "encoding/binary"

// Register field encodings (ModRM.reg / ModRM.rm, low 3 bits — none of the
// registers this trampoline uses are r8-r15, so no REX.R/X/B extension bit
// is ever needed).
const (
	regAX = 0
	regCX = 1
	regDX = 2
	regBX = 3
	regSP = 4
	regBP = 5
	regSI = 6
	regDI = 7
)

const rexW = 0x48

func (a *Assembler) emit(b ...byte) {
	a.text = append(a.text, b...)
}

func (a *Assembler) emitU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	a.text = append(a.text, tmp[:]...)
}

func (a *Assembler) emitU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	a.text = append(a.text, tmp[:]...)
}

// ripDisp appends the 4-byte signed displacement of a RIP-relative operand
// whose opcode/ModRM bytes (using ModRM.rm=101, no SIB) have already been
// written, given the remaining number of bytes (e.g. an immediate) the
// instruction still has after the displacement field.
func (a *Assembler) ripDisp(target uint64, trailingBytes int) {
	pos := uint64(BootPhys) + uint64(len(a.text))
	instrEnd := pos + 4 + uint64(trailingBytes)
	disp := int32(int64(target) - int64(instrEnd))
	a.emitU32(uint32(disp))
}

// leaRip emits "lea reg, [rip+disp32]" addressing target.
func (a *Assembler) leaRip(reg byte, target uint64) {
	a.emit(rexW, 0x8d, 0x05|(reg<<3))
	a.ripDisp(target, 0)
}

// movRipStore64 emits "mov [rip+disp32], reg" (64-bit store).
func (a *Assembler) movRipStore64(target uint64, reg byte) {
	a.emit(rexW, 0x89, 0x05|(reg<<3))
	a.ripDisp(target, 0)
}

// movRipStore32 emits "mov [rip+disp32], reg" (32-bit store).
func (a *Assembler) movRipStore32(target uint64, reg byte) {
	a.emit(0x89, 0x05|(reg<<3))
	a.ripDisp(target, 0)
}

// movRipLoad64 emits "mov reg, [rip+disp32]" (64-bit load).
func (a *Assembler) movRipLoad64(reg byte, target uint64) {
	a.emit(rexW, 0x8b, 0x05|(reg<<3))
	a.ripDisp(target, 0)
}

func (a *Assembler) movR64Imm32(reg byte, imm int32) {
	a.emit(rexW, 0xc7, 0xc0|reg)
	a.emitU32(uint32(imm))
}

func (a *Assembler) movR64Imm64(reg byte, imm uint64) {
	a.emit(rexW, 0xb8+reg)
	a.emitU64(imm)
}

func (a *Assembler) movR32Imm32(reg byte, imm uint32) {
	a.emit(0xb8 + reg)
	a.emitU32(imm)
}

// orR64Imm32 emits "or reg, imm32" (sign-extended to 64 bits). A full
// 32-bit immediate is used even for small flag values like 0x83, because an
// 8-bit immediate form would sign-extend the high bit of 0x83 into the rest
// of the register.
func (a *Assembler) orR64Imm32(reg byte, imm uint32) {
	a.emit(rexW, 0x81, 0xc8|reg)
	a.emitU32(imm)
}

func (a *Assembler) addR64Imm32(reg byte, imm uint32) {
	a.emit(rexW, 0x81, 0xc0|reg)
	a.emitU32(imm)
}

func (a *Assembler) xorR64(reg byte) {
	a.emit(rexW, 0x31, 0xc0|(reg<<3)|reg)
}

// movIndexedStore64 emits "mov [base+index*8], reg".
func (a *Assembler) movIndexedStore64(base, index, reg byte) {
	sib := (3 << 6) | (index << 3) | base
	a.emit(rexW, 0x89, 0x04|(reg<<3), sib)
}

func (a *Assembler) incR32(reg byte) {
	a.emit(0xff, 0xc0|reg)
}

func (a *Assembler) cmpR32Imm32(reg byte, imm uint32) {
	a.emit(0x81, 0xf8|reg)
	a.emitU32(imm)
}

// jl appends a backward "jl rel32" to an already-bound target offset.
func (a *Assembler) jl(targetOffset int) {
	a.emit(0x0f, 0x8c)
	instrEnd := len(a.text) + 4
	disp := int32(targetOffset - instrEnd)
	a.emitU32(uint32(disp))
}

func (a *Assembler) pushR64(reg byte) {
	a.emit(0x50 + reg)
}

func (a *Assembler) retfq() {
	a.emit(rexW, 0xcb)
}

// movSegReg emits "mov <segreg>, reg32" for one of ss/ds/es/fs/gs.
func (a *Assembler) movSegReg(segReg byte, reg byte) {
	a.emit(0x8e, 0xc0|(segReg<<3)|reg)
}

const (
	segES = 0
	segSS = 2
	segDS = 3
	segFS = 4
	segGS = 5
)

func (a *Assembler) subRspImm8(imm byte) {
	a.emit(rexW, 0x83, 0xec, imm)
}

// movStoreRspDword emits "mov [rsp], reg32".
func (a *Assembler) movStoreRspDword(reg byte) {
	a.emit(0x89, 0x04|(reg<<3), 0x24)
}

func (a *Assembler) movCr3FromRax() {
	a.emit(0x0f, 0x22, 0xd8)
}

func (a *Assembler) jmpRax() {
	a.emit(0xff, 0xe0)
}

func (a *Assembler) cli()  { a.emit(0xfa) }
func (a *Assembler) hlt()  { a.emit(0xf4) }
func (a *Assembler) int3() { a.emit(0xcc) }

// jmpSelf emits an infinite "jmp $" loop.
func (a *Assembler) jmpSelf() { a.emit(0xeb, 0xfe) }

// lgdt emits "lgdt [rip+disp32]".
func (a *Assembler) lgdt(target uint64) {
	a.emit(0x0f, 0x01, 0x15)
	a.ripDisp(target, 0)
}

// assembleText emits the trampoline's executable code: GDT/paging setup,
// the long-mode CS reload, an optional graphics reset, and the jump into
// the FreeBSD kernel entry point. Mirrors
// original_source/bootassembler.cxx:assembleText instruction by
// instruction; register assignment differs in a few spots (rsi/rdi stand
// in for the original's r11/r12 index pointers) to keep every ModRM byte
// below free of a REX.B/R extension bit.
func (a *Assembler) assembleText() error {
	l := a.labels

	a.cli()

	// GDT.
	a.movR32Imm32(regDI, 4*8-1)
	a.movRipStore32(l["GDTP"], regDI)
	a.leaRip(regSI, l["GDT"])
	a.movRipStore64(l["GDTP"]+2, regSI)
	a.lgdt(l["GDTP"])

	// Reload CS via a far return, then bind L1.
	a.movR64Imm32(regAX, 0x10)
	a.pushR64(regAX)
	l1FixupPos := len(a.text) + 3 // REX.W(1)+opcode(1)+modrm(1) precede the disp32 we're about to reserve
	a.leaRip(regAX, 0)            // target patched once L1 is bound
	a.pushR64(regAX)
	a.retfq()
	l1Offset := len(a.text)
	patchRipDisp(a.text, l1FixupPos, uint64(BootPhys+l1Offset))

	// Load data segments.
	a.movR32Imm32(regAX, 0x18)
	a.movSegReg(segSS, regAX)
	a.movSegReg(segDS, regAX)
	a.movSegReg(segES, regAX)
	a.movSegReg(segFS, regAX)
	a.movSegReg(segGS, regAX)

	// Stack.
	a.leaRip(regSP, l["stackTop"])

	// Paging: level 4 and level 3, low mapping.
	a.leaRip(regAX, l["PDPT0"])
	a.orR64Imm32(regAX, 3)
	a.movRipStore64(l["PML4T"], regAX)

	a.leaRip(regAX, l["PDT0"])
	a.orR64Imm32(regAX, 3)
	a.movRipStore64(l["PDPT0"]+8*0, regAX)
	a.addR64Imm32(regAX, 0x1000)
	a.movRipStore64(l["PDPT0"]+8*1, regAX)
	a.addR64Imm32(regAX, 0x1000)
	a.movRipStore64(l["PDPT0"]+8*2, regAX)
	a.addR64Imm32(regAX, 0x1000)
	a.movRipStore64(l["PDPT0"]+8*3, regAX)

	// Paging: level 2, low mapping — 2048 2 MiB pages.
	a.xorR64(regAX)
	a.xorR64(regCX)
	a.orR64Imm32(regAX, 0x83)
	lpPD0 := len(a.text)
	a.leaRip(regSI, l["PDT0"])
	a.movIndexedStore64(regSI, regCX, regAX)
	a.addR64Imm32(regAX, 0x200000)
	a.incR32(regCX)
	a.cmpR32Imm32(regCX, 512*4)
	a.jl(lpPD0)

	// Paging: level 4 and level 3, high mapping.
	a.leaRip(regAX, l["PDPT1"])
	a.orR64Imm32(regAX, 3)
	a.movRipStore64(l["PML4T"]+8*511, regAX)

	a.leaRip(regAX, l["PDT1"])
	a.orR64Imm32(regAX, 3)
	a.movRipStore64(l["PDPT1"]+8*510, regAX)
	a.addR64Imm32(regAX, 0x1000)
	a.movRipStore64(l["PDPT1"]+8*511, regAX)

	// Paging: level 2, high mapping — zero-page compatibility entry.
	a.movR64Imm32(regAX, 0)
	a.orR64Imm32(regAX, 0x83)
	a.movRipStore64(l["PDT1"], regAX)

	// Paging: level 2, high mapping — remaining 1023 2 MiB pages.
	a.movR64Imm32(regAX, 0x200000)
	a.orR64Imm32(regAX, 0x83)
	a.movR64Imm32(regCX, 1)
	a.orR64Imm32(regAX, 0x83)
	lpPD1 := len(a.text)
	a.leaRip(regDI, l["PDT1"])
	a.movIndexedStore64(regDI, regCX, regAX)
	a.addR64Imm32(regAX, 0x200000)
	a.incR32(regCX)
	a.cmpR32Imm32(regCX, 512*2)
	a.jl(lpPD1)

	// Activate paging.
	a.leaRip(regAX, l["PML4T"])
	a.movCr3FromRax()

	// Graphics reset, if any.
	a.emit(a.GfxReset...)

	// FreeBSD boot call frame: push kernend, modulep, 0 as 32-bit values.
	a.movR32Imm32(regAX, 0)
	a.movR32Imm32(regBX, uint32(a.ModuleP))
	a.movR32Imm32(regCX, uint32(a.KernEnd))
	a.subRspImm8(4)
	a.movStoreRspDword(regCX)
	a.subRspImm8(4)
	a.movStoreRspDword(regBX)
	a.subRspImm8(4)
	a.movStoreRspDword(regAX)

	a.movR64Imm64(regAX, a.Btext)
	a.jmpRax()

	// Halt trap.
	a.hlt()
	a.jmpSelf()
	a.int3()

	return nil
}

// patchRipDisp rewrites an already-emitted RIP-relative displacement field
// once its target offset is known, for the one forward reference
// (L1) this trampoline needs.
func patchRipDisp(text []byte, dispPos int, target uint64) {
	instrEnd := uint64(BootPhys) + uint64(dispPos) + 4
	disp := int32(int64(target) - int64(instrEnd))
	binary.LittleEndian.PutUint32(text[dispPos:dispPos+4], uint32(disp))
}
