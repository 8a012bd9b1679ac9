// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootloader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/philmb3487/beastie-boot/pkg/hostboot"
)

func TestEncodeSMAP(t *testing.T) {
	smap := []hostboot.SMAPEntry{
		{Addr: 0, Size: 0x9fc00, Type: 1},
		{Addr: 0x100000, Size: 0x7ee0000, Type: 1},
	}
	b := encodeSMAP(smap)
	require.Len(t, b, 2*e820EntrySize)

	require.Equal(t, uint64(0), binary.LittleEndian.Uint64(b[0:8]))
	require.Equal(t, uint64(0x9fc00), binary.LittleEndian.Uint64(b[8:16]))
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(b[16:20]))

	require.Equal(t, uint64(0x100000), binary.LittleEndian.Uint64(b[20:28]))
}

func TestEncodeEFIMapHeaderAndFixedSize(t *testing.T) {
	m := []hostboot.EFIMapEntry{
		{Type: hostboot.EfiMdTypeFree, Phys: 0x100000, Pages: 16, Attr: 0x0f},
	}
	b := encodeEFIMap(m)
	require.Len(t, b, 32+efiMapMaxEntries*efiMapEntrySize, "payload is always the fixed 128-entry array, zero-padded")

	descSize := binary.LittleEndian.Uint64(b[8:16])
	require.Equal(t, uint64(efiMapEntrySize), descSize)

	rec := b[32 : 32+efiMapEntrySize]
	require.Equal(t, uint32(hostboot.EfiMdTypeFree), binary.LittleEndian.Uint32(rec[0:4]))
	require.Equal(t, uint64(0x100000), binary.LittleEndian.Uint64(rec[8:16]))
	require.Equal(t, uint64(16), binary.LittleEndian.Uint64(rec[24:32]))
	require.Equal(t, uint64(0x0f), binary.LittleEndian.Uint64(rec[32:40]), "attr field must not be dropped")
}

func TestEncodeEFIMapTruncatesAtMaxEntries(t *testing.T) {
	m := make([]hostboot.EFIMapEntry, efiMapMaxEntries+5)
	for i := range m {
		m[i] = hostboot.EFIMapEntry{Phys: uint64(i)}
	}
	b := encodeEFIMap(m)
	require.Len(t, b, 32+efiMapMaxEntries*efiMapEntrySize)
}

func TestEncodeEFIFramebuffer(t *testing.T) {
	fb := &hostboot.Framebuffer{
		Phys:      0xe0000000,
		Width:     1024,
		Height:    768,
		MaskRed:   0x00ff0000,
		MaskGreen: 0x0000ff00,
		MaskBlue:  0x000000ff,
	}
	b := encodeEFIFramebuffer(fb)
	require.Len(t, b, 44)
	require.Equal(t, fb.Phys, binary.LittleEndian.Uint64(b[0:8]))
	require.Equal(t, uint64(1024*768*4), binary.LittleEndian.Uint64(b[8:16]))
	require.Equal(t, uint32(768), binary.LittleEndian.Uint32(b[16:20]))
	require.Equal(t, uint32(1024), binary.LittleEndian.Uint32(b[20:24]))
}
