// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostboot collects the Linux-specific host calls beastie needs to
// gather a FreeBSD kernel's boot environment and to hand control to it:
// framebuffer and PCI probing, the E820/EFI memory map, ACPI RSDP
// discovery, and the kexec_load/reboot syscall boundary itself. Mirrors
// original_source/misc.cxx and the kexec bits of
// original_source/bootloader.cxx.
package hostboot

import "fmt"

// BootParamsPath is where the running kernel exposes the raw
// boot_params structure it was started with.
const BootParamsPath = "/sys/kernel/boot_params/data"

// Boot_params field offsets this package reads directly, per
// arch/x86/include/uapi/asm/bootparam.h. The struct itself is not
// reproduced here; only the handful of fields beastie needs are read at
// their fixed byte offsets.
const (
	offScreenInfo  = 0x000 // struct screen_info, 0x40 bytes
	offACPIRsdpPtr = 0x070 // __u64 acpi_rsdp_addr
	offE820Entries = 0x1e8 // __u8  e820_entries
	offE820Table   = 0x2d0 // struct boot_e820_entry[E820_MAX_ENTRIES_ZEROPAGE]
)

const maxE820Entries = 128

// ErrIO wraps a failure to read or interpret a host probe source.
type ErrIO struct {
	Path string
	Err  error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("hostboot: %s: %v", e.Path, e.Err)
}

func (e *ErrIO) Unwrap() error { return e.Err }
