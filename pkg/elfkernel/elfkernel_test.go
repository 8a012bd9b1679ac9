// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elfkernel

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// segSpec describes one PT_LOAD segment buildTestKernelSegs should place.
type segSpec struct {
	vaddr   uint64
	payload []byte
}

// buildTestKernelSegs assembles a minimal well-formed FreeBSD/amd64 ET_EXEC
// image carrying the given PT_LOAD segments plus a SHT_SYMTAB and
// SHT_STRTAB section, enough to exercise Load end to end without a real
// kernel binary.
func buildTestKernelSegs(t *testing.T, entry uint64, segs []segSpec) []byte {
	t.Helper()

	const ehSize = 64
	const phSize = 56
	const shSize = 64

	phOff := uint64(ehSize)
	dataOff := phOff + phSize*uint64(len(segs))

	offsets := make([]uint64, len(segs))
	cur := dataOff
	for i, s := range segs {
		offsets[i] = cur
		cur += uint64(len(s.payload))
	}

	symtab := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	strtab := []byte("\x00kernel\x00")
	symOff := cur
	strOff := symOff + uint64(len(symtab))
	shOff := strOff + uint64(len(strtab))

	var buf bytes.Buffer

	ident := [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 9}
	hdr := elf64Header{
		Ident:     ident,
		Type:      etExec,
		Machine:   0x3e,
		Version:   1,
		Entry:     entry,
		Phoff:     phOff,
		Shoff:     shOff,
		Ehsize:    ehSize,
		Phentsize: phSize,
		Phnum:     uint16(len(segs)),
		Shentsize: shSize,
		Shnum:     3,
		Shstrndx:  0,
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))

	for i, s := range segs {
		ph := elf64ProgHeader{
			Type:   ptLoad,
			Offset: offsets[i],
			Vaddr:  s.vaddr,
			Paddr:  s.vaddr,
			Filesz: uint64(len(s.payload)),
			Memsz:  uint64(len(s.payload)),
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, ph))
	}

	for _, s := range segs {
		buf.Write(s.payload)
	}
	buf.Write(symtab)
	buf.Write(strtab)

	shdrs := []elf64SectHeader{
		{Type: 0}, // SHT_NULL
		{Type: shtSymtab, Offset: symOff, Size: uint64(len(symtab))},
		{Type: shtStrtab, Offset: strOff, Size: uint64(len(strtab))},
	}
	for _, sh := range shdrs {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, sh))
	}

	return buf.Bytes()
}

func buildTestKernel(t *testing.T, vaddr uint64, payload []byte) []byte {
	t.Helper()
	return buildTestKernelSegs(t, vaddr, []segSpec{{vaddr: vaddr, payload: payload}})
}

func TestLoadExecStripsKernbaseHole(t *testing.T) {
	vaddr := KERNBASE + kernelHole + 0x1000
	payload := []byte{1, 2, 3, 4}
	img := buildTestKernel(t, vaddr, payload)

	k, err := Load(img)
	require.NoError(t, err)
	require.Equal(t, vaddr, k.Entry)

	paddr := vaddr - KERNBASE - kernelHole
	require.Equal(t, payload, k.Block[paddr:paddr+uint64(len(payload))])
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, k.SymTab)
	require.Equal(t, []byte("\x00kernel\x00"), k.StrTab)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	img := buildTestKernel(t, KERNBASE+kernelHole, []byte{1})
	img[0] = 0x00
	_, err := Load(img)
	require.Error(t, err)
	var fe *ErrFormat
	require.ErrorAs(t, err, &fe)
}

func TestLoadRejectsWrongOSABI(t *testing.T) {
	img := buildTestKernel(t, KERNBASE+kernelHole, []byte{1})
	img[7] = 0 // EI_OSABI: System V instead of FreeBSD
	_, err := Load(img)
	require.Error(t, err)
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	img := buildTestKernel(t, KERNBASE+kernelHole, []byte{1})
	binary.LittleEndian.PutUint16(img[18:20], 0x03) // e_machine: i386
	_, err := Load(img)
	require.Error(t, err)
}

func TestLoadRejectsVaddrBelowHole(t *testing.T) {
	img := buildTestKernel(t, KERNBASE+kernelHole-1, []byte{1})
	_, err := Load(img)
	require.Error(t, err)
}

func TestLoadRejectsRelocatableModule(t *testing.T) {
	img := buildTestKernel(t, KERNBASE+kernelHole, []byte{1})
	binary.LittleEndian.PutUint16(img[16:18], etRel)
	// A well-formed ET_REL image has e_phnum == 0 and e_entry == 0; zero
	// both so the asserted invariants hold and ErrModuleNotSupported is the
	// only reason Load refuses it.
	binary.LittleEndian.PutUint16(img[56:58], 0)
	binary.LittleEndian.PutUint64(img[24:32], 0)
	_, err := Load(img)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrModuleNotSupported{})
}

func TestLoadRelRejectsNonZeroPhnum(t *testing.T) {
	img := buildTestKernel(t, KERNBASE+kernelHole, []byte{1})
	binary.LittleEndian.PutUint16(img[16:18], etRel)
	binary.LittleEndian.PutUint64(img[24:32], 0) // e_entry = 0
	// e_phnum is already 1 from buildTestKernel's single PT_LOAD entry.
	_, err := Load(img)
	require.Error(t, err)
	var fe *ErrFormat
	require.ErrorAs(t, err, &fe)
	require.Contains(t, err.Error(), "e_phnum")
}

func TestLoadRelRejectsNonZeroEntry(t *testing.T) {
	img := buildTestKernel(t, KERNBASE+kernelHole, []byte{1})
	binary.LittleEndian.PutUint16(img[16:18], etRel)
	binary.LittleEndian.PutUint16(img[56:58], 0) // e_phnum = 0
	_, err := Load(img)
	require.Error(t, err)
	var fe *ErrFormat
	require.ErrorAs(t, err, &fe)
	require.Contains(t, err.Error(), "e_entry")
}

func TestLoadRejectsOverlappingSegments(t *testing.T) {
	base := KERNBASE + kernelHole
	img := buildTestKernelSegs(t, base, []segSpec{
		{vaddr: base, payload: []byte{1, 2, 3, 4}},
		{vaddr: base + 2, payload: []byte{5, 6}},
	})

	_, err := Load(img)
	require.Error(t, err)
}
