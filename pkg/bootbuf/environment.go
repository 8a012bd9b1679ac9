// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootbuf

// EnvWriter builds the FreeBSD kernel environment pool: a sequence of
// "key=value\x00" strings terminated by a second NUL byte. An empty pool is
// just the double-NUL sentinel; each new entry replaces the terminating NUL
// (both sentinel bytes for the first entry) and is followed by a fresh one,
// mirroring original_source/cenvironmentwriter.cxx.
type EnvWriter struct {
	buf   []byte
	count int
}

// NewEnvWriter returns an EnvWriter holding just the double-NUL sentinel.
func NewEnvWriter() *EnvWriter {
	return &EnvWriter{buf: []byte{0, 0}}
}

// Add appends a "key=value" pair to the pool.
func (w *EnvWriter) Add(key, value string) {
	w.AddString(key + "=" + value)
}

// AddString appends a raw "key=value" string to the pool.
func (w *EnvWriter) AddString(s string) {
	if w.count == 0 {
		w.buf = w.buf[:0]
	} else {
		w.buf = w.buf[:len(w.buf)-1]
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0, 0)
	w.count++
}

// Count returns the number of entries added so far.
func (w *EnvWriter) Count() int { return w.count }

// Bytes returns the accumulated environment pool, including its trailing
// double-NUL terminator.
func (w *EnvWriter) Bytes() []byte { return w.buf }
