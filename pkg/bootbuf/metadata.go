// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootbuf

// MetaWriter builds the FreeBSD loader's MODINFO metadata stream: a
// sequence of "type(u32) length(u32) payload pad-to-8" records, terminated
// by a MODINFO_END record. Mirrors original_source/cmetawriter.cxx; note
// that the original always pads to an 8-byte boundary regardless of the
// record's own alignment requirement, a quirk preserved here rather than
// "fixed", since it is part of the on-wire contract FreeBSD's loader.c
// actually parses.
type MetaWriter struct {
	buf Buffer
}

// NewMetaWriter returns an empty MetaWriter.
func NewMetaWriter() *MetaWriter {
	return &MetaWriter{}
}

// Bytes returns the accumulated metadata stream.
func (w *MetaWriter) Bytes() []byte { return w.buf.Bytes() }

func (w *MetaWriter) record(typ uint32, payload []byte) {
	w.buf.AppendUint32(typ)
	w.buf.AppendUint32(uint32(len(payload)))
	w.buf.AppendBytes(payload)
	w.buf.AlignTo(8)
}

// Str writes a NUL-terminated string record of the given type.
func (w *MetaWriter) Str(typ uint32, s string) {
	payload := append([]byte(s), 0)
	w.record(typ, payload)
}

// Var writes a fixed-size little-endian uint64 record of the given type.
func (w *MetaWriter) Var(typ uint32, v uint64) {
	var tmp Buffer
	tmp.AppendUint64(v)
	w.record(typ, tmp.Bytes())
}

// Span writes a raw byte-span record of the given type.
func (w *MetaWriter) Span(typ uint32, payload []byte) {
	w.record(typ, payload)
}

// Metadata32 writes an extended METADATA record (record type
// MODINFO_METADATA|subType) holding a 32-bit value, matching the original's
// addMetadata(type, uint32_t) instantiation (used for HOWTO).
func (w *MetaWriter) Metadata32(subType uint32, v uint32) {
	var tmp Buffer
	tmp.AppendUint32(v)
	w.record(ModInfoMetadata|subType, tmp.Bytes())
}

// Metadata64 writes an extended METADATA record (record type
// MODINFO_METADATA|subType) holding a 64-bit (pointer-width) value,
// matching the original's addMetadata(type, uintptr_t) instantiation (used
// for SSYM/ESYM/ENVP/FW_HANDLE/FONT).
func (w *MetaWriter) Metadata64(subType uint32, v uint64) {
	var tmp Buffer
	tmp.AppendUint64(v)
	w.record(ModInfoMetadata|subType, tmp.Bytes())
}

// MetadataSpan writes an extended METADATA record (record type
// MODINFO_METADATA|subType) holding a raw byte span, matching the
// original's addMetadata(type, span<char>) overload (used for
// SMAP/EFI_MAP/EFI_FB).
func (w *MetaWriter) MetadataSpan(subType uint32, payload []byte) {
	w.record(ModInfoMetadata|subType, payload)
}

// AddName writes a MODINFO_NAME record.
func (w *MetaWriter) AddName(name string) { w.Str(ModInfoName, name) }

// AddType writes a MODINFO_TYPE record.
func (w *MetaWriter) AddType(typ string) { w.Str(ModInfoType, typ) }

// AddArgs writes a MODINFO_ARGS record.
func (w *MetaWriter) AddArgs(args string) { w.Str(ModInfoArgs, args) }

// AddAddr writes a MODINFO_ADDR record.
func (w *MetaWriter) AddAddr(addr uint64) { w.Var(ModInfoAddr, addr) }

// AddSize writes a MODINFO_SIZE record.
func (w *MetaWriter) AddSize(size uint64) { w.Var(ModInfoSize, size) }

// AddEnd terminates the stream with a MODINFO_END record.
func (w *MetaWriter) AddEnd() { w.record(ModInfoEnd, nil) }
