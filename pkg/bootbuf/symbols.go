// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootbuf

// SymWriter builds the kernel symbol/string table block the FreeBSD kernel
// expects adjoining its ELF image: each table is preceded by its own
// 8-byte length and padded to an 8-byte boundary, mirroring
// original_source/csymbolswriter.cxx.
type SymWriter struct {
	buf Buffer
}

// NewSymWriter returns an empty SymWriter.
func NewSymWriter() *SymWriter {
	return &SymWriter{}
}

// AddSymTab appends the ELF symbol table contents (a .symtab section).
func (w *SymWriter) AddSymTab(symtab []byte) {
	w.addTable(symtab)
}

// AddStrTab appends the ELF string table contents (a .strtab section).
func (w *SymWriter) AddStrTab(strtab []byte) {
	w.addTable(strtab)
}

func (w *SymWriter) addTable(table []byte) {
	w.buf.AppendUint64(uint64(len(table)))
	w.buf.AppendBytes(table)
	w.buf.AlignTo(8)
}

// Bytes returns the accumulated symbols block.
func (w *SymWriter) Bytes() []byte { return w.buf.Bytes() }

// Len returns the accumulated symbols block's length.
func (w *SymWriter) Len() int { return w.buf.Len() }
