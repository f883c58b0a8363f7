package instrument

import "sort"

// lineIndex maps byte offsets in a source to line numbers.
type lineIndex struct {
	starts []int // byte offset of the first character of each line
	base   int   // line number of the first source line
}

// newLineIndex builds the index for source. startLine is the line number of
// the first source line (1 for standalone files; the embedding line for
// sources extracted mid-document).
func newLineIndex(source string, startLine int) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts, base: startLine}
}

// lineAt returns the line number containing the byte at offset. Offsets
// beyond the source clamp to the last line.
func (li *lineIndex) lineAt(offset int) int {
	if offset < 0 {
		offset = 0
	}
	i := sort.SearchInts(li.starts, offset+1) - 1
	return li.base + i
}
