// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootloader

import (
	"encoding/binary"

	"github.com/philmb3487/beastie-boot/pkg/hostboot"
)

// efiMapEntrySize is sizeof(struct efimapentry) from
// original_source/types.hxx: type(4) pad(4) phys(8) virt(8) pages(8)
// attr(8), packed.
const efiMapEntrySize = 40

// efiMapMaxEntries mirrors the fixed efi_table[128] array the original
// efimapinfo struct embeds in its MODINFOMD_EFI_MAP payload.
const efiMapMaxEntries = 128

// encodeSMAP packs smap as a sequence of 20-byte boot_e820_entry records
// (addr, size, type), matching the raw span
// original_source/bootloader.cxx:writeMetadata takes over m_smap.e820_table.
func encodeSMAP(smap []hostboot.SMAPEntry) []byte {
	buf := make([]byte, len(smap)*e820EntrySize)
	for i, e := range smap {
		rec := buf[i*e820EntrySize : (i+1)*e820EntrySize]
		binary.LittleEndian.PutUint64(rec[0:8], e.Addr)
		binary.LittleEndian.PutUint64(rec[8:16], e.Size)
		binary.LittleEndian.PutUint32(rec[16:20], e.Type)
	}
	return buf
}

const e820EntrySize = 20

// encodeEFIMap packs m as the fixed-size efimapinfo payload the original
// embeds verbatim: an 8+8+4+4+8-byte header followed by a fixed 128-entry
// descriptor array, zero-padded past len(m).
func encodeEFIMap(m []hostboot.EFIMapEntry) []byte {
	const headerSize = 32
	buf := make([]byte, headerSize+efiMapMaxEntries*efiMapEntrySize)

	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(m))*efiMapEntrySize)
	binary.LittleEndian.PutUint64(buf[8:16], efiMapEntrySize)
	binary.LittleEndian.PutUint32(buf[16:20], 1) // descriptor_version

	n := len(m)
	if n > efiMapMaxEntries {
		n = efiMapMaxEntries
	}
	for i := 0; i < n; i++ {
		rec := buf[headerSize+i*efiMapEntrySize : headerSize+(i+1)*efiMapEntrySize]
		binary.LittleEndian.PutUint32(rec[0:4], m[i].Type)
		binary.LittleEndian.PutUint64(rec[8:16], m[i].Phys)
		binary.LittleEndian.PutUint64(rec[16:24], m[i].Virt)
		binary.LittleEndian.PutUint64(rec[24:32], m[i].Pages)
		binary.LittleEndian.PutUint64(rec[32:40], m[i].Attr)
	}
	return buf
}

// encodeEFIFramebuffer packs fb as the 44-byte efifbinfo payload
// original_source/bootloader.cxx:writeMetadata builds for MODINFOMD_EFI_FB.
func encodeEFIFramebuffer(fb *hostboot.Framebuffer) []byte {
	buf := make([]byte, 44)
	binary.LittleEndian.PutUint64(buf[0:8], fb.Phys)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(fb.Width)*uint64(fb.Height)*4)
	binary.LittleEndian.PutUint32(buf[16:20], fb.Height)
	binary.LittleEndian.PutUint32(buf[20:24], fb.Width)
	binary.LittleEndian.PutUint32(buf[24:28], fb.Width)
	binary.LittleEndian.PutUint32(buf[28:32], fb.MaskRed)
	binary.LittleEndian.PutUint32(buf[32:36], fb.MaskGreen)
	binary.LittleEndian.PutUint32(buf[36:40], fb.MaskBlue)
	binary.LittleEndian.PutUint32(buf[40:44], 0xff000000)
	return buf
}
