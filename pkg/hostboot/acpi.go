// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostboot

import (
	"bufio"
	"encoding/binary"
	"os"
	"strconv"
	"strings"
)

const efiSystabPath = "/sys/firmware/efi/systab"
const devMemPath = "/dev/mem"

// FetchACPI locates the ACPI RSDP and, from it, the RSDT pointer, per ACPI
// Specification 5.2.5.2 ("Finding the RSDP on UEFI Enabled Systems").
// On EFI hosts the RSDP address comes from the "ACPI20=" line of
// /sys/firmware/efi/systab; otherwise it comes from the legacy
// boot_params.acpi_rsdp_addr field. Either way, the RSDT pointer itself is
// read 16 bytes into the RSDP structure via /dev/mem. Mirrors
// original_source/misc.cxx:fetchACPI20.
func FetchACPI(efi bool) (rsdp, rsdt uint64, err error) {
	if efi {
		rsdp, err = fetchRSDPFromSystab()
	} else {
		rsdp, err = fetchRSDPFromBootParams()
	}
	if err != nil {
		return 0, 0, err
	}

	rsdt, err = readRSDTPointer(rsdp)
	if err != nil {
		return 0, 0, err
	}
	return rsdp, rsdt, nil
}

func fetchRSDPFromSystab() (uint64, error) {
	f, err := os.Open(efiSystabPath)
	if err != nil {
		return 0, &ErrIO{Path: efiSystabPath, Err: err}
	}
	defer f.Close()

	var rsdp uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "ACPI20=") {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(line, "ACPI20="), 16, 64)
		if err != nil {
			return 0, &ErrIO{Path: efiSystabPath, Err: err}
		}
		rsdp = v
	}
	if err := sc.Err(); err != nil {
		return 0, &ErrIO{Path: efiSystabPath, Err: err}
	}
	return rsdp, nil
}

func fetchRSDPFromBootParams() (uint64, error) {
	f, err := os.Open(BootParamsPath)
	if err != nil {
		return 0, &ErrIO{Path: BootParamsPath, Err: err}
	}
	defer f.Close()

	var buf [8]byte
	if _, err := f.ReadAt(buf[:], offACPIRsdpPtr); err != nil {
		return 0, &ErrIO{Path: BootParamsPath, Err: err}
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readRSDTPointer reads the 32-bit RSDT pointer 16 bytes into the RSDP
// structure at physical address rsdp, via /dev/mem.
func readRSDTPointer(rsdp uint64) (uint64, error) {
	f, err := os.OpenFile(devMemPath, os.O_RDONLY, 0)
	if err != nil {
		return 0, &ErrIO{Path: devMemPath, Err: err}
	}
	defer f.Close()

	var hdr [20]byte
	if _, err := f.ReadAt(hdr[:], int64(rsdp)); err != nil {
		return 0, &ErrIO{Path: devMemPath, Err: err}
	}
	return uint64(binary.LittleEndian.Uint32(hdr[16:20])), nil
}
