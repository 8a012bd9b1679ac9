// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootbuf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymWriterLayout(t *testing.T) {
	w := NewSymWriter()
	w.AddSymTab([]byte{1, 2, 3})
	w.AddStrTab([]byte{4, 5})

	b := w.Bytes()
	require.Equal(t, w.Len(), len(b))

	symLen := binary.LittleEndian.Uint64(b[0:8])
	require.Equal(t, uint64(3), symLen)
	require.Equal(t, []byte{1, 2, 3}, b[8:11])
	// aligned to 8 after the 3-byte symtab payload
	strOff := 8 + 8
	strLen := binary.LittleEndian.Uint64(b[strOff : strOff+8])
	require.Equal(t, uint64(2), strLen)
	require.Equal(t, []byte{4, 5}, b[strOff+8:strOff+10])

	require.Zero(t, len(b)%8, "symbols block must end 8-byte aligned")
}

func TestSymWriterEmptyTables(t *testing.T) {
	w := NewSymWriter()
	w.AddSymTab(nil)
	w.AddStrTab(nil)
	b := w.Bytes()
	require.Equal(t, uint64(0), binary.LittleEndian.Uint64(b[0:8]))
	require.Equal(t, uint64(0), binary.LittleEndian.Uint64(b[8:16]))
	require.Equal(t, 16, len(b))
}
