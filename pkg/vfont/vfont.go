// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfont reads a FreeBSD console ".fnt" (VFNT0002) file, optionally
// gzip-compressed, and re-emits it in the in-kernel wire format the FreeBSD
// loader installs as MODINFOMD_FONT metadata.
package vfont

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
)

// NumMaps is the number of mapping tables a VFNT file carries: normal,
// normal-right, bold, bold-right.
const NumMaps = 4

const magic = "VFNT0002"

// onDiskHeader is the big-endian on-disk VFNT0002 header.
type onDiskHeader struct {
	Magic     [8]byte
	Width     uint8
	Height    uint8
	Pad       uint16
	GlyphCnt  uint32
	MapCounts [NumMaps]uint32
}

// onDiskMap is a single big-endian glyph mapping table entry.
type onDiskMap struct {
	Src uint32
	Dst uint16
	Len uint16
}

// kernelHeader is the little-endian (host order) in-kernel font_info
// header: a negated checksum over the fields that follow it, guarding
// against the block being truncated or misrouted in the metadata stream.
type kernelHeader struct {
	Checksum   uint32
	Width      uint32
	Height     uint32
	BitmapSize uint32
	MapCounts  [NumMaps]uint32
}

// ErrFormat is returned when the input is not a recognized VFNT0002 file.
type ErrFormat struct {
	Reason string
}

func (e *ErrFormat) Error() string {
	return fmt.Sprintf("vfont: %s", e.Reason)
}

// Load reads raw (a complete .fnt or .fnt.gz file's contents) and returns
// the in-kernel wire-format font block ready to be placed in the
// MODINFOMD_FONT segment.
func Load(raw []byte) ([]byte, error) {
	data, err := maybeGunzip(raw)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(data)

	var hdr onDiskHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, &ErrFormat{Reason: "truncated VFNT header"}
	}
	if string(hdr.Magic[:]) != magic {
		return nil, &ErrFormat{Reason: fmt.Sprintf("bad magic %q, want %q", hdr.Magic, magic)}
	}

	glyphBytesPerChar := int((uint32(hdr.Width) + 7) / 8 * uint32(hdr.Height))
	totalGlyphBytes := glyphBytesPerChar * int(hdr.GlyphCnt)

	glyphs := make([]byte, totalGlyphBytes)
	if _, err := io.ReadFull(r, glyphs); err != nil {
		return nil, &ErrFormat{Reason: "truncated glyph bitmap data"}
	}

	var maps [NumMaps][]onDiskMap
	for i := 0; i < NumMaps; i++ {
		maps[i] = make([]onDiskMap, hdr.MapCounts[i])
		for j := range maps[i] {
			if err := binary.Read(r, binary.BigEndian, &maps[i][j]); err != nil {
				return nil, &ErrFormat{Reason: fmt.Sprintf("truncated mapping table %d", i)}
			}
		}
	}

	if err := validateMaps(maps, hdr.GlyphCnt); err != nil {
		return nil, err
	}

	khdr := kernelHeader{
		Width:      uint32(hdr.Width),
		Height:     uint32(hdr.Height),
		BitmapSize: uint32(totalGlyphBytes),
		MapCounts:  hdr.MapCounts,
	}
	var sum uint32
	sum += khdr.Width
	sum += khdr.Height
	sum += khdr.BitmapSize
	for _, c := range khdr.MapCounts {
		sum += c
	}
	khdr.Checksum = -sum

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, khdr)
	for i := 0; i < NumMaps; i++ {
		for _, m := range maps[i] {
			binary.Write(&out, binary.LittleEndian, m)
		}
	}
	out.Write(glyphs)

	return out.Bytes(), nil
}

// maybeGunzip transparently decompresses raw if it carries a gzip magic
// header, mirroring original_source/misc.cxx:zslurp.
func maybeGunzip(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ErrFormat{Reason: "invalid gzip stream"}
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

// validateMaps checks that every mapping table entry's character range
// (Dst..Dst+Len) falls within the glyph table the font actually carries.
// All four tables are checked in full and every violation is reported
// together, rather than stopping at the first, since a font with several
// bad tables should say so once instead of requiring four separate fixup
// runs.
func validateMaps(maps [NumMaps][]onDiskMap, glyphCount uint32) error {
	var result *multierror.Error
	for i, table := range maps {
		for j, m := range table {
			if uint32(m.Dst)+uint32(m.Len) > glyphCount {
				result = multierror.Append(result, &ErrFormat{
					Reason: fmt.Sprintf("mapping table %d entry %d references glyph %d, beyond glyph count %d",
						i, j, uint32(m.Dst)+uint32(m.Len), glyphCount),
				})
			}
		}
	}
	return result.ErrorOrNil()
}
