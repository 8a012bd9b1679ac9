// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootbuf

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferAppend(t *testing.T) {
	buf := NewBuffer(0)
	buf.AppendByte(0xff)
	buf.AppendUint16(0x1234)
	buf.AppendUint32(0x89abcdef)
	buf.AppendUint64(0x0102030405060708)
	buf.AppendString("hi")

	want := []byte{
		0xff,
		0x34, 0x12,
		0xef, 0xcd, 0xab, 0x89,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		'h', 'i', 0,
	}
	require.Equal(t, want, buf.Bytes())
	require.Equal(t, len(want), buf.Len())
}

func TestBufferAlignTo(t *testing.T) {
	buf := NewBuffer(0)
	buf.AppendBytes([]byte{1, 2, 3})
	buf.AlignTo(8)
	require.Equal(t, 8, buf.Len())
	require.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, buf.Bytes())

	buf.AlignTo(8)
	require.Equal(t, 8, buf.Len(), "already aligned buffer should be untouched")
}

func TestBufferReaderRoundTrip(t *testing.T) {
	buf := NewBuffer(0)
	buf.AppendBytes([]byte{1, 2, 3, 4, 5})

	r := buf.Reader()
	got := make([]byte, 3)
	n, err := r.Read(got)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{1, 2, 3}, got)

	pos, err := r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)

	all, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, all)

	_, err = r.Seek(-1, io.SeekStart)
	require.Error(t, err)
}

func TestHexDump(t *testing.T) {
	var out writerBuf
	HexDump(&out, "foo", []byte{1, 2, 3})
	require.Contains(t, string(out), "foo (3 bytes):")
	require.Contains(t, string(out), "00000000")
}

type writerBuf []byte

func (w *writerBuf) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
