// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trampoline

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleProducesFixedSizeSections(t *testing.T) {
	a := &Assembler{
		Btext:   0xffffffff80200000,
		ModuleP: 0x300000,
		KernEnd: 0x310000,
	}
	code, err := a.Assemble()
	require.NoError(t, err)
	require.Len(t, code.Text, TextSize)
	require.Len(t, code.Data, DataSize)
	require.Len(t, code.Bytes(), TextSize+DataSize)
}

func TestAssembleRejectsKernEndBeforeModuleP(t *testing.T) {
	a := &Assembler{Btext: 1, ModuleP: 0x1000, KernEnd: 0x500}
	_, err := a.Assemble()
	require.Error(t, err)
}

func TestAssembleEmbedsGfxReset(t *testing.T) {
	reset := []byte{0xb8, 0x01, 0x02, 0x03, 0x04}
	a := &Assembler{
		Btext:    1,
		ModuleP:  0x300000,
		KernEnd:  0x310000,
		GfxReset: reset,
	}
	code, err := a.Assemble()
	require.NoError(t, err)
	require.Contains(t, string(code.Text), string(reset))
}

func TestGDTDescribesFlatCodeAndDataSegments(t *testing.T) {
	a := &Assembler{Btext: 1, ModuleP: 0x300000, KernEnd: 0x310000}
	code, err := a.Assemble()
	require.NoError(t, err)

	gdt := code.Data[offGDT : offGDT+32]
	require.Equal(t, make([]byte, 16), gdt[0:16], "first two GDT entries must be NULL descriptors")
	require.Equal(t, uint64(gdtCode), binary.LittleEndian.Uint64(gdt[16:24]))
	require.Equal(t, uint64(gdtData), binary.LittleEndian.Uint64(gdt[24:32]))
}

func TestPageTablesAreZeroedInTheStaticImage(t *testing.T) {
	a := &Assembler{Btext: 1, ModuleP: 0x300000, KernEnd: 0x310000}
	code, err := a.Assemble()
	require.NoError(t, err)

	// PML4T/PDPT[0]/PDPT[1]/PDT[0]/PDT[1] hold no static values: every
	// entry is written by the trampoline's own runtime paging-setup code,
	// not pre-baked into the kexec'd image.
	require.Equal(t, make([]byte, PageSize), code.Data[offPML4T:offPML4T+PageSize])
	require.Equal(t, make([]byte, PageSize), code.Data[offPDPT0:offPDPT0+PageSize])
	require.Equal(t, make([]byte, PageSize), code.Data[offPDPT1:offPDPT1+PageSize])
	require.Equal(t, make([]byte, 4*PageSize), code.Data[offPDT0:offPDT0+4*PageSize])
	require.Equal(t, make([]byte, 2*PageSize), code.Data[offPDT1:offPDT1+2*PageSize])
}

func TestDebugIncludesEveryLabel(t *testing.T) {
	a := &Assembler{Btext: 0x1234, ModuleP: 0x300000, KernEnd: 0x310000}
	_, err := a.Assemble()
	require.NoError(t, err)

	out := a.Debug()
	for _, name := range []string{"GDT", "GDTP", "PML4T", "PDPT0", "PDPT1", "PDT0", "PDT1", "stackTop", "btext"} {
		require.Contains(t, out, name)
	}
}

func TestDataLabelsAreBootPhysRelative(t *testing.T) {
	labels := dataLabels()
	require.Equal(t, uint64(BootPhys+TextSize), labels["GDT"])
	require.Greater(t, labels["PML4T"], labels["GDT"])
}
