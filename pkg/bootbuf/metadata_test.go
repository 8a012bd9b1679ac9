// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootbuf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetaWriterStrRecord(t *testing.T) {
	w := NewMetaWriter()
	w.AddName("kernel")
	b := w.Bytes()

	typ := binary.LittleEndian.Uint32(b[0:4])
	length := binary.LittleEndian.Uint32(b[4:8])
	require.Equal(t, uint32(ModInfoName), typ)
	require.Equal(t, uint32(len("kernel")+1), length)
	require.Equal(t, append([]byte("kernel"), 0), b[8:8+length])
	require.Zero(t, len(b)%8)
}

func TestMetaWriterMetadataRecordsCombineTypeAndSubtype(t *testing.T) {
	w := NewMetaWriter()
	w.Metadata64(ModInfoMdSsym, 0xdeadbeef)
	b := w.Bytes()

	typ := binary.LittleEndian.Uint32(b[0:4])
	require.Equal(t, uint32(ModInfoMetadata|ModInfoMdSsym), typ,
		"METADATA records must carry the subtype combined into the record type, not the payload")

	length := binary.LittleEndian.Uint32(b[4:8])
	require.Equal(t, uint32(8), length)
	require.Equal(t, uint64(0xdeadbeef), binary.LittleEndian.Uint64(b[8:16]))
}

func TestMetaWriterMetadata32(t *testing.T) {
	w := NewMetaWriter()
	w.Metadata32(ModInfoMdHowto, 0x800)
	b := w.Bytes()

	length := binary.LittleEndian.Uint32(b[4:8])
	require.Equal(t, uint32(4), length)
	require.Equal(t, uint32(0x800), binary.LittleEndian.Uint32(b[8:12]))
}

func TestMetaWriterMetadataSpan(t *testing.T) {
	w := NewMetaWriter()
	payload := []byte{1, 2, 3, 4, 5}
	w.MetadataSpan(ModInfoMdSmap, payload)
	b := w.Bytes()

	typ := binary.LittleEndian.Uint32(b[0:4])
	require.Equal(t, uint32(ModInfoMetadata|ModInfoMdSmap), typ)
	length := binary.LittleEndian.Uint32(b[4:8])
	require.Equal(t, uint32(len(payload)), length)
	require.Equal(t, payload, b[8:8+len(payload)])
	require.Zero(t, len(b)%8, "every record pads to an 8-byte boundary regardless of payload size")
}

func TestMetaWriterEndRecord(t *testing.T) {
	w := NewMetaWriter()
	w.AddEnd()
	b := w.Bytes()
	require.Equal(t, uint32(ModInfoEnd), binary.LittleEndian.Uint32(b[0:4]))
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[4:8]))
	require.Len(t, b, 8)
}

func TestMetaWriterFullStreamOrder(t *testing.T) {
	w := NewMetaWriter()
	w.AddName("kernel")
	w.AddType("elf64 kernel")
	w.AddAddr(0x200000)
	w.AddSize(0x400000)
	w.Metadata64(ModInfoMdSsym, 1)
	w.Metadata64(ModInfoMdEsym, 2)
	w.AddEnd()

	b := w.Bytes()
	var offset int
	var types []uint32
	for offset < len(b) {
		typ := binary.LittleEndian.Uint32(b[offset : offset+4])
		length := binary.LittleEndian.Uint32(b[offset+4 : offset+8])
		types = append(types, typ)
		offset += 8 + int(length)
		for offset%8 != 0 {
			offset++
		}
	}
	require.Equal(t, []uint32{
		ModInfoName,
		ModInfoType,
		ModInfoAddr,
		ModInfoSize,
		ModInfoMetadata | ModInfoMdSsym,
		ModInfoMetadata | ModInfoMdEsym,
		ModInfoEnd,
	}, types)
}
