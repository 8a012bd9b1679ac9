// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package byterange provides a small helper type for tracking physical
// address ranges and detecting overlaps between them.
package byterange

import (
	"fmt"
	"sort"
	"strings"
)

// Range is a half-open physical address range [Offset, Offset+Length).
type Range struct {
	Offset uint64
	Length uint64
}

func (r Range) String() string {
	return fmt.Sprintf(`{"Offset":"0x%x", "Length":"0x%x"}`, r.Offset, r.Length)
}

// End returns the first address past the end of the range.
func (r Range) End() uint64 {
	return r.Offset + r.Length
}

// Intersect reports whether r and cmp share at least one byte.
func (r Range) Intersect(cmp Range) bool {
	if r.Length == 0 || cmp.Length == 0 {
		return false
	}
	if r.End() <= cmp.Offset {
		return false
	}
	if r.Offset >= cmp.End() {
		return false
	}
	return true
}

// Ranges is a helper for manipulating multiple Range values at once.
type Ranges []Range

func (s Ranges) String() string {
	r := make([]string, 0, len(s))
	for _, one := range s {
		r = append(r, one.String())
	}
	return `[` + strings.Join(r, `, `) + `]`
}

// Sort orders the slice by Offset.
func (s Ranges) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Offset < s[j].Offset
	})
}

// FindOverlap returns the first pair of ranges that intersect, if any.
// It does not require the slice to be pre-sorted.
func (s Ranges) FindOverlap() (a, b Range, found bool) {
	for i := 0; i < len(s); i++ {
		for j := i + 1; j < len(s); j++ {
			if s[i].Intersect(s[j]) {
				return s[i], s[j], true
			}
		}
	}
	return Range{}, Range{}, false
}
