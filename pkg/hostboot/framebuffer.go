// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostboot

import (
	"encoding/binary"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const fbDevicePath = "/dev/fb0"

const (
	fbioGetVScreenInfo = 0x4600
	fbioGetFScreenInfo = 0x4602
)

// fbFixScreeninfo mirrors struct fb_fix_screeninfo from linux/fb.h, the
// portion beastie reads.
type fbFixScreeninfo struct {
	ID           [16]byte
	SmemStart    uint64
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	Xpanstep     uint16
	Ypanstep     uint16
	Ywrapstep    uint16
	LineLength   uint32
	MmioStart    uint64
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	Reserved     [2]uint16
}

type fbBitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight uint32
}

// fbVarScreeninfo mirrors struct fb_var_screeninfo from linux/fb.h.
type fbVarScreeninfo struct {
	Xres          uint32
	Yres          uint32
	XresVirtual   uint32
	YresVirtual   uint32
	Xoffset       uint32
	Yoffset       uint32
	BitsPerPixel  uint32
	Grayscale     uint32
	Red           fbBitfield
	Green         fbBitfield
	Blue          fbBitfield
	Transp        fbBitfield
	Nonstd        uint32
	Activate      uint32
	Height        uint32
	Width         uint32
	AccelFlags    uint32
	Pixclock      uint32
	LeftMargin    uint32
	RightMargin   uint32
	UpperMargin   uint32
	LowerMargin   uint32
	HsyncLen      uint32
	VsyncLen      uint32
	Sync          uint32
	Vmode         uint32
	Rotate        uint32
	Colorspace    uint32
	Reserved      [4]uint32
}

// Framebuffer describes the console framebuffer the FreeBSD kernel should
// continue using, matching original_source/types.hxx's fbinfo.
type Framebuffer struct {
	ID           string
	Phys         uint64
	Size         uint64
	Width        uint32
	Height       uint32
	MaskRed      uint32
	MaskGreen    uint32
	MaskBlue     uint32
	MaskReserved uint32
	Extra1       uint64
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ProbeFramebuffer opens /dev/fb0 and reads its fixed and variable screen
// info. If the adapter doesn't identify itself as "EFI VGA", the physical
// base address is instead read from the legacy screen_info structure Linux
// publishes at boot, matching original_source/misc.cxx:fetchFB.
func ProbeFramebuffer() (*Framebuffer, error) {
	f, err := os.OpenFile(fbDevicePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, &ErrIO{Path: fbDevicePath, Err: err}
	}
	defer f.Close()

	var fix fbFixScreeninfo
	var v fbVarScreeninfo
	if err := ioctl(f.Fd(), fbioGetFScreenInfo, unsafe.Pointer(&fix)); err != nil {
		return nil, &ErrIO{Path: fbDevicePath, Err: err}
	}
	if err := ioctl(f.Fd(), fbioGetVScreenInfo, unsafe.Pointer(&v)); err != nil {
		return nil, &ErrIO{Path: fbDevicePath, Err: err}
	}

	id := cString(fix.ID[:])

	fb := &Framebuffer{
		ID:           id,
		Size:         uint64(fix.SmemLen),
		Width:        v.Xres,
		Height:       v.Yres,
		MaskRed:      0xff << v.Red.Offset,
		MaskGreen:    0xff << v.Green.Offset,
		MaskBlue:     0xff << v.Blue.Offset,
		MaskReserved: 0xff000000,
	}

	if id == "EFI VGA" {
		fb.Phys = fix.SmemStart
		return fb, nil
	}

	lfbBase, extLfbBase, err := fetchLegacyLFBBase()
	if err != nil {
		return nil, err
	}
	fb.Phys = lfbBase | (extLfbBase << 32)
	return fb, nil
}

// fetchLegacyLFBBase reads screen_info.lfb_base and screen_info.ext_lfb_base
// from the published boot_params, for hosts whose framebuffer doesn't
// self-identify as "EFI VGA".
func fetchLegacyLFBBase() (lfbBase, extLfbBase uint64, err error) {
	f, err := os.Open(BootParamsPath)
	if err != nil {
		return 0, 0, &ErrIO{Path: BootParamsPath, Err: err}
	}
	defer f.Close()

	// screen_info.lfb_base is at offset 0x18, a 32-bit field;
	// screen_info.ext_lfb_base is at offset 0x3a, also 32-bit.
	var buf [0x40]byte
	if _, err := f.ReadAt(buf[:], offScreenInfo); err != nil {
		return 0, 0, &ErrIO{Path: BootParamsPath, Err: err}
	}
	lfbBase = uint64(binary.LittleEndian.Uint32(buf[0x18:]))
	extLfbBase = uint64(binary.LittleEndian.Uint32(buf[0x3a:]))
	return lfbBase, extLfbBase, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
