// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostboot

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/philmb3487/beastie-boot/pkg/gfxreset"
)

const pciDevicesDir = "/sys/bus/pci/devices"

// ProbeVMwareSVGA scans the PCI bus for a VMware SVGA II virtual display
// adapter (vendor 0x15ad, device 0x0405) and, if found, returns its I/O
// port BAR0 base address. original_source has no direct equivalent of a
// sysfs PCI scan — cvmwaregfx.cxx assumes the adapter's resources are
// already known — but probing /sys/bus/pci/devices this way is how the
// rest of the corpus (u-root's pci enumeration helpers) discovers device
// resources from userspace on Linux.
func ProbeVMwareSVGA() (present bool, ioBase uint16, err error) {
	entries, err := os.ReadDir(pciDevicesDir)
	if err != nil {
		return false, 0, &ErrIO{Path: pciDevicesDir, Err: err}
	}

	for _, entry := range entries {
		dir := filepath.Join(pciDevicesDir, entry.Name())

		vendor, err := readHexFile(filepath.Join(dir, "vendor"))
		if err != nil {
			continue
		}
		device, err := readHexFile(filepath.Join(dir, "device"))
		if err != nil {
			continue
		}
		if vendor != gfxreset.VendorVMware || device != gfxreset.DeviceSVGAII {
			continue
		}

		base, err := readIOBAR0(filepath.Join(dir, "resource"))
		if err != nil {
			return false, 0, err
		}
		return true, base, nil
	}
	return false, 0, nil
}

func readHexFile(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &ErrIO{Path: path, Err: err}
	}
	v, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")), 16, 32)
	if err != nil {
		return 0, &ErrIO{Path: path, Err: err}
	}
	return uint32(v), nil
}

// readIOBAR0 reads the "resource" file's first line (BAR0) and returns its
// start address, truncated to the 16-bit I/O port space VMware SVGA II's
// BAR0 lives in.
func readIOBAR0(path string) (uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &ErrIO{Path: path, Err: err}
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 0 {
		return 0, &ErrIO{Path: path, Err: os.ErrInvalid}
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return 0, &ErrIO{Path: path, Err: os.ErrInvalid}
	}
	start, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
	if err != nil {
		return 0, &ErrIO{Path: path, Err: err}
	}
	return uint16(start), nil
}
