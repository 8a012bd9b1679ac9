// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostboot

import (
	"os"

	"golang.org/x/sys/unix"
)

// firmwareEFIDir is checked for IsEFI, mirroring
// original_source/misc.cxx:isEFI.
const firmwareEFIDir = "/sys/firmware/efi"

// IsEFI reports whether this host was booted via EFI.
func IsEFI() bool {
	fi, err := os.Stat(firmwareEFIDir)
	if err != nil || !fi.IsDir() {
		return false
	}
	entries, err := os.ReadDir(firmwareEFIDir)
	return err == nil && len(entries) > 0
}

// shutdownCandidates are tried in order, exactly as
// original_source/misc.cxx:shutdown does.
var shutdownCandidates = []string{"/sbin/shutdown", "/etc/shutdown", "/bin/shutdown"}

// Shutdown execs "shutdown -r now" from the first candidate path that
// exists, replacing the current process. It only returns if every
// candidate failed to exec.
func Shutdown() error {
	argv := []string{"shutdown", "-r", "now"}
	var lastErr error
	for _, path := range shutdownCandidates {
		lastErr = unix.Exec(path, argv, os.Environ())
	}
	return &ErrIO{Path: "shutdown", Err: lastErr}
}

// ForcedShutdown immediately triggers the kernel's kexec reboot path via
// reboot(2), bypassing any userspace shutdown sequence.
func ForcedShutdown() error {
	return unix.Reboot(unix.LINUX_REBOOT_CMD_KEXEC)
}
