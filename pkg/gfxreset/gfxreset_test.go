// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gfxreset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntelNoOpPresence(t *testing.T) {
	match := NewIntelNoOp("i915drmfb", 0xe0000000)
	require.True(t, match.Present())
	require.Equal(t, uintptr(0xe0000000), match.Base())
	require.Empty(t, match.AssembleReset(1024, 768))

	other := NewIntelNoOp("vmwgfx", 0)
	require.False(t, other.Present())
}

func TestSvgaPresence(t *testing.T) {
	s := NewSvga(true, 0x1000, 0xf0000000)
	require.True(t, s.Present())
	require.Equal(t, uintptr(0xf0000000), s.Base())

	absent := NewSvga(false, 0, 0)
	require.False(t, absent.Present())
}

func TestSvgaAssembleResetEncodesSixRegisterWrites(t *testing.T) {
	s := NewSvga(true, 0x1000, 0)
	code := s.AssembleReset(1024, 768)
	require.NotEmpty(t, code)

	// Each register write emits two "mov eax,imm32; mov edx,imm32; out dx,eax"
	// sequences (index then value), 2*(5+5+1)=22 bytes; six writes total.
	require.Equal(t, 6*22, len(code))

	// First write is ENABLE=0: opcode 0xb8 followed by the little-endian
	// register index (svgaRegEnable == 1).
	require.Equal(t, byte(0xb8), code[0])
	require.Equal(t, byte(svgaRegEnable), code[1])
	require.Equal(t, byte(0), code[2])
}

func TestLegacyVGAResetEncodesOutwAsSingleByteOut(t *testing.T) {
	code := AssembleLegacyReset()
	require.NotEmpty(t, code)
	// Every "out" in this stream is a single-byte out (0xee), even for the
	// 16-bit-loaded outw() operations, mirroring the original's quirk.
	require.NotContains(t, code, byte(0xef))
}
