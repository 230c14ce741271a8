package ast

import "sort"

// LineTable maps byte offsets to 1-based line and column numbers.
type LineTable struct {
	starts []int
	size   int
}

func NewLineTable(src []byte) *LineTable {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineTable{starts: starts, size: len(src)}
}

// Position returns the 1-based line and column of offset. Offsets past the
// end clamp to the last position.
func (t *LineTable) Position(offset int) (line, col int) {
	if t == nil || len(t.starts) == 0 {
		return 1, offset + 1
	}
	if offset < 0 {
		offset = 0
	}
	if offset > t.size {
		offset = t.size
	}
	i := sort.Search(len(t.starts), func(i int) bool { return t.starts[i] > offset }) - 1
	return i + 1, offset - t.starts[i] + 1
}

// Offset converts a 1-based line and column back to a byte offset.
func (t *LineTable) Offset(line, col int) int {
	if t == nil || line < 1 {
		return 0
	}
	if line > len(t.starts) {
		return t.size
	}
	off := t.starts[line-1] + col - 1
	if off > t.size {
		return t.size
	}
	return off
}

func (t *LineTable) LineCount() int {
	if t == nil {
		return 0
	}
	return len(t.starts)
}

// LineStart returns the offset of the first byte of a 1-based line.
func (t *LineTable) LineStart(line int) int {
	return t.Offset(line, 1)
}
