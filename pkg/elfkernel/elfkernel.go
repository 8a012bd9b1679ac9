// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elfkernel loads a FreeBSD/amd64 ELF64 kernel image into a
// physical-memory-shaped byte block, stripping the canonical 2 MiB hole
// FreeBSD's own boot loader strips between KERNBASE and the first loaded
// segment, and extracts the kernel's symbol and string tables.
package elfkernel

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/philmb3487/beastie-boot/pkg/byterange"
)

// KERNBASE is the FreeBSD/amd64 kernel virtual base address.
const KERNBASE = 0xFFFFFFFF80000000

// kernelHole is the fixed gap FreeBSD's own loader leaves between KERNBASE
// and the first physical byte of the loaded kernel image.
const kernelHole = 0x200000

const (
	etExec = 2
	etRel  = 1

	ptLoad = 1

	shtSymtab = 2
	shtStrtab = 3
)

// ErrModuleNotSupported is returned when the supplied ELF image is a
// relocatable module (ET_REL) rather than a linked kernel (ET_EXEC).
// Loading modules is not implemented; the file is recognized and rejected
// with this diagnostic rather than silently mishandled.
type ErrModuleNotSupported struct{}

func (ErrModuleNotSupported) Error() string {
	return "ELF relocatable modules (ET_REL) are not supported by this loader"
}

// ErrFormat is returned when the ELF image fails a FreeBSD/amd64-specific
// validation check (magic, class, byte order, OSABI, machine, or an
// unexpected ET_* type).
type ErrFormat struct {
	Reason string
}

func (e *ErrFormat) Error() string {
	return fmt.Sprintf("elfkernel: %s", e.Reason)
}

type elf64Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64ProgHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

type elf64SectHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

// Kernel holds the result of loading an ELF64 kernel image.
type Kernel struct {
	// Entry is the kernel's virtual entry point address (btext).
	Entry uint64
	// Block is the kernel image reshaped into physical-address order,
	// starting at physical address KERN_PHYS (0x200000).
	Block []byte
	// SymTab and StrTab are the raw bytes of the first SHT_SYMTAB and
	// SHT_STRTAB sections found, if any.
	SymTab []byte
	StrTab []byte
}

// Load parses buffer as an ELF64 kernel image and returns its physical
// layout. It returns ErrModuleNotSupported for ET_REL images and *ErrFormat
// for any other structural mismatch.
func Load(buffer []byte) (*Kernel, error) {
	r := bytesextra.NewReadWriteSeeker(buffer)

	var hdr elf64Header
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, &ErrFormat{Reason: "truncated ELF header"}
	}
	if err := validateIdent(hdr.Ident); err != nil {
		return nil, err
	}
	if hdr.Machine != 0x3e {
		return nil, &ErrFormat{Reason: fmt.Sprintf("unsupported e_machine 0x%x, want amd64 (0x3e)", hdr.Machine)}
	}
	if hdr.Version != 1 {
		return nil, &ErrFormat{Reason: fmt.Sprintf("unsupported e_version %d", hdr.Version)}
	}

	switch hdr.Type {
	case etRel:
		return nil, loadRel(hdr)
	case etExec:
		return loadExec(r, hdr)
	default:
		return nil, &ErrFormat{Reason: fmt.Sprintf("unsupported e_type %d", hdr.Type)}
	}
}

// loadRel validates the two invariants original_source/bootloader.cxx:
// elfLoadRel asserts before its unimplemented module-loading path (never
// reached): e_phnum must be zero (a relocatable module carries no program
// headers) and e_entry must be zero (it has no fixed entry point). Loading
// modules is not implemented; a well-formed ET_REL image that passes both
// checks is still rejected with ErrModuleNotSupported.
func loadRel(hdr elf64Header) error {
	if hdr.Phnum != 0 {
		return &ErrFormat{Reason: fmt.Sprintf("ET_REL image has non-zero e_phnum %d", hdr.Phnum)}
	}
	if hdr.Entry != 0 {
		return &ErrFormat{Reason: fmt.Sprintf("ET_REL image has non-zero e_entry 0x%x", hdr.Entry)}
	}
	return ErrModuleNotSupported{}
}

func validateIdent(ident [16]byte) error {
	if ident[0] != 0x7f || ident[1] != 'E' || ident[2] != 'L' || ident[3] != 'F' {
		return &ErrFormat{Reason: "missing ELF magic"}
	}
	if ident[4] != 2 {
		return &ErrFormat{Reason: "not a 64-bit ELF object"}
	}
	if ident[5] != 1 {
		return &ErrFormat{Reason: "not little-endian"}
	}
	if ident[6] != 1 {
		return &ErrFormat{Reason: "unsupported EI_VERSION"}
	}
	if ident[7] != 9 {
		return &ErrFormat{Reason: fmt.Sprintf("unsupported EI_OSABI %d, want FreeBSD (9)", ident[7])}
	}
	return nil
}

func loadExec(r io.ReadSeeker, hdr elf64Header) (*Kernel, error) {
	if hdr.Entry == 0 {
		return nil, &ErrFormat{Reason: "zero entry point in ET_EXEC image"}
	}

	phdrs := make([]elf64ProgHeader, hdr.Phnum)
	if _, err := r.Seek(int64(hdr.Phoff), io.SeekStart); err != nil {
		return nil, err
	}
	for i := range phdrs {
		if err := binary.Read(r, binary.LittleEndian, &phdrs[i]); err != nil {
			return nil, &ErrFormat{Reason: "truncated program header table"}
		}
	}

	shdrs := make([]elf64SectHeader, hdr.Shnum)
	if _, err := r.Seek(int64(hdr.Shoff), io.SeekStart); err != nil {
		return nil, err
	}
	for i := range shdrs {
		if err := binary.Read(r, binary.LittleEndian, &shdrs[i]); err != nil {
			return nil, &ErrFormat{Reason: "truncated section header table"}
		}
	}

	var ranges byterange.Ranges
	var blockLen uint64
	for _, ph := range phdrs {
		if ph.Type != ptLoad {
			continue
		}
		if ph.Vaddr < KERNBASE+kernelHole {
			return nil, &ErrFormat{Reason: fmt.Sprintf("PT_LOAD vaddr 0x%x below KERNBASE+hole", ph.Vaddr)}
		}
		paddr := ph.Vaddr - KERNBASE - kernelHole
		ranges = append(ranges, byterange.Range{Offset: paddr, Length: ph.Memsz})
		if end := paddr + ph.Memsz; end > blockLen {
			blockLen = end
		}
	}
	if a, b, found := ranges.FindOverlap(); found {
		return nil, &ErrFormat{Reason: fmt.Sprintf("overlapping PT_LOAD ranges %s and %s", a, b)}
	}

	block := make([]byte, blockLen)
	for _, ph := range phdrs {
		if ph.Type != ptLoad {
			continue
		}
		paddr := ph.Vaddr - KERNBASE - kernelHole
		if ph.Filesz == 0 {
			continue
		}
		if _, err := r.Seek(int64(ph.Offset), io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, block[paddr:paddr+ph.Filesz]); err != nil {
			return nil, &ErrFormat{Reason: "truncated PT_LOAD segment contents"}
		}
	}

	kern := &Kernel{Entry: hdr.Entry, Block: block}

	for _, sh := range shdrs {
		if sh.Type != shtSymtab || kern.SymTab != nil {
			continue
		}
		buf := make([]byte, sh.Size)
		if sh.Size > 0 {
			if _, err := r.Seek(int64(sh.Offset), io.SeekStart); err != nil {
				return nil, err
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, &ErrFormat{Reason: "truncated SHT_SYMTAB section"}
			}
		}
		kern.SymTab = buf
	}
	for _, sh := range shdrs {
		if sh.Type != shtStrtab || kern.StrTab != nil {
			continue
		}
		buf := make([]byte, sh.Size)
		if sh.Size > 0 {
			if _, err := r.Seek(int64(sh.Offset), io.SeekStart); err != nil {
				return nil, err
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, &ErrFormat{Reason: "truncated SHT_STRTAB section"}
			}
		}
		kern.StrTab = buf
	}

	return kern, nil
}
