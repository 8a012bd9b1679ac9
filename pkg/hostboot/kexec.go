// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostboot

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/philmb3487/beastie-boot/pkg/layout"
)

// kexecArchX86_64 is KEXEC_ARCH_X86_64 from linux/kexec.h, OR'd into the
// flags argument of kexec_load(2).
const kexecArchX86_64 = 62 << 16

// kexecFileUnload is KEXEC_FILE_UNLOAD from linux/kexec.h. It belongs to
// the kexec_file_load(2) family, not kexec_load(2); original_source's own
// Bootloader::unload() passes it to SYS_kexec_load anyway, and this
// mirrors that exactly rather than silently correcting what may well be
// a no-op on most kernels.
const kexecFileUnload = 0x00000004

// kexecSegment mirrors struct kexec_segment from linux/kexec.h.
type kexecSegment struct {
	Buf   uintptr
	Bufsz uintptr
	Mem   uintptr
	Memsz uintptr
}

// Kexec is the kexec_load(2) syscall boundary beastie stages its segments
// through.
type Kexec struct{}

// Load stages entry and segs with the running kernel via kexec_load(2),
// mirroring original_source/bootloader.cxx:load.
func (Kexec) Load(entry uint64, segs []layout.Segment) error {
	raw := make([]kexecSegment, len(segs))
	for i, s := range segs {
		var bufPtr uintptr
		if len(s.Buf) > 0 {
			bufPtr = uintptr(unsafe.Pointer(&s.Buf[0]))
		}
		raw[i] = kexecSegment{
			Buf:   bufPtr,
			Bufsz: uintptr(len(s.Buf)),
			Mem:   uintptr(s.Mem),
			Memsz: uintptr(s.MemSize),
		}
	}

	var segPtr unsafe.Pointer
	if len(raw) > 0 {
		segPtr = unsafe.Pointer(&raw[0])
	}

	_, _, errno := unix.Syscall6(unix.SYS_KEXEC_LOAD,
		uintptr(entry),
		uintptr(len(raw)),
		uintptr(segPtr),
		uintptr(kexecArchX86_64),
		0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Unload tears down any kexec_load(2) image currently staged. ESRCH ("no
// image currently loaded") is swallowed, since callers treat Unload as an
// idempotent cleanup rather than an assertion that something was staged.
func (Kexec) Unload() error {
	_, _, errno := unix.Syscall6(unix.SYS_KEXEC_LOAD, 0, 0, 0, uintptr(kexecFileUnload), 0, 0)
	if errno != 0 && errno != unix.ESRCH {
		return errno
	}
	return nil
}
