// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trampoline

import "encoding/binary"

// GDT entry values: two NULL descriptors, a flat 64-bit code segment, and a
// flat 64-bit data segment. Selectors 0x10 and 0x18 index the third and
// fourth entries.
const (
	gdtCode = 0x00af9a000000ffff
	gdtData = 0x00cf92000000ffff
)

// assembleData writes the GDT and GDT pointer into data, which must already
// be DataSize bytes of zeros. The PML4T/PDPT[0]/PDPT[1]/PDT[0]/PDT[1]
// regions are left zeroed here, exactly as
// original_source/bootassembler.cxx:createData reserves them — they hold no
// static data at all; assembleText's runtime paging-setup code (mirrored in
// text.go) is what populates every page-table entry when the trampoline
// actually runs.
func assembleData(data []byte) {
	putU64(data, offGDT+0, 0)
	putU64(data, offGDT+8, 0)
	putU64(data, offGDT+16, gdtCode)
	putU64(data, offGDT+24, gdtData)

	binary.LittleEndian.PutUint16(data[offGDTP:], 4*8-1)
	putU64(data, offGDTP+2, uint64(BootPhys+TextSize+offGDT))
}

func putU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}
