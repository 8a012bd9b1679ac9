// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostboot

import (
	"encoding/binary"
	"os"

	"github.com/philmb3487/beastie-boot/pkg/bootbuf"
)

// SMAPEntry is one BIOS/UEFI-reported e820 memory range.
type SMAPEntry struct {
	Addr uint64
	Size uint64
	Type uint32
}

// e820EntrySize is sizeof(struct boot_e820_entry): two 8-byte fields
// followed by a 4-byte type, packed.
const e820EntrySize = 20

// FetchMemoryMap reads the E820 table the kernel was booted with out of
// the published boot_params, mirroring original_source/misc.cxx:fetchSMAP.
func FetchMemoryMap() ([]SMAPEntry, error) {
	f, err := os.Open(BootParamsPath)
	if err != nil {
		return nil, &ErrIO{Path: BootParamsPath, Err: err}
	}
	defer f.Close()

	var countBuf [1]byte
	if _, err := f.ReadAt(countBuf[:], offE820Entries); err != nil {
		return nil, &ErrIO{Path: BootParamsPath, Err: err}
	}
	count := int(countBuf[0])
	if count > maxE820Entries {
		count = maxE820Entries
	}

	buf := make([]byte, count*e820EntrySize)
	if count > 0 {
		if _, err := f.ReadAt(buf, offE820Table); err != nil {
			return nil, &ErrIO{Path: BootParamsPath, Err: err}
		}
	}

	entries := make([]SMAPEntry, count)
	for i := range entries {
		rec := buf[i*e820EntrySize : (i+1)*e820EntrySize]
		entries[i] = SMAPEntry{
			Addr: binary.LittleEndian.Uint64(rec[0:8]),
			Size: binary.LittleEndian.Uint64(rec[8:16]),
			Type: binary.LittleEndian.Uint32(rec[16:20]),
		}
	}
	return entries, nil
}

// EFIMapEntry is one synthesized EFI_MEMORY_DESCRIPTOR, shaped to match
// original_source/types.hxx's efimapentry layout (type, pad, phys, virt,
// pages, attr).
type EFIMapEntry struct {
	Type  uint32
	Phys  uint64
	Virt  uint64
	Pages uint64
	Attr  uint64
}

// efiAttrStandard is the attribute value original_source/misc.cxx hardcodes
// for every synthesized descriptor.
const efiAttrStandard = 0x0f

// FetchEFIMemoryMap synthesizes an EFI memory map from the E820 table:
// Linux's own efi/runtime-map doesn't include plain system memory
// descriptors, so beastie derives them from e820 instead, matching
// original_source/misc.cxx:fetchEFIMAP.
func FetchEFIMemoryMap() ([]EFIMapEntry, error) {
	smap, err := FetchMemoryMap()
	if err != nil {
		return nil, err
	}

	var entries []EFIMapEntry
	for _, e := range smap {
		if e.Type != bootbuf.SmapTypeMemory {
			continue
		}
		entries = append(entries, EFIMapEntry{
			Type:  EfiMdTypeFree,
			Phys:  e.Addr,
			Virt:  0,
			Pages: e.Size / 4096,
			Attr:  efiAttrStandard,
		})
	}
	return entries, nil
}

// EfiMdTypeFree is EFI_MD_TYPE_FREE, the only descriptor type beastie ever
// synthesizes.
const EfiMdTypeFree = bootbuf.EfiMdTypeFree
