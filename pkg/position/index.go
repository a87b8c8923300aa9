package position

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// Index converts between byte offsets and Places for one immutable text.
//
// Line breaks are "\n", "\r\n" and a lone "\r". Columns count UTF-16 code units.
type Index struct {
	text       string
	lineStarts []int
	ascii      []bool
}

func NewIndex(text string) *Index {
	ix := &Index{
		text:       text,
		lineStarts: []int{0},
	}
	ascii := true
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			ix.ascii = append(ix.ascii, ascii)
			ix.lineStarts = append(ix.lineStarts, i+1)
			ascii = true
		case c == '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			ix.ascii = append(ix.ascii, ascii)
			ix.lineStarts = append(ix.lineStarts, i+1)
			ascii = true
		case c >= utf8.RuneSelf:
			ascii = false
		}
	}
	ix.ascii = append(ix.ascii, ascii)
	return ix
}

func (ix *Index) Text() string {
	return ix.text
}

func (ix *Index) LineCount() int {
	return len(ix.lineStarts)
}

// lineBounds returns the byte span of a line without its terminator.
func (ix *Index) lineBounds(line int) (int, int) {
	start := ix.lineStarts[line]
	end := len(ix.text)
	if line+1 < len(ix.lineStarts) {
		end = ix.lineStarts[line+1] - 1
		if end > start && ix.text[end] == '\n' && ix.text[end-1] == '\r' {
			end--
		}
	}
	return start, end
}

// OffsetFor returns the byte offset of p. Lines past the end clamp to the text length and
// columns past the end of a line clamp to the line end, so any Place is safe to pass.
func (ix *Index) OffsetFor(p Place) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(ix.lineStarts) {
		return len(ix.text)
	}
	start, end := ix.lineBounds(p.Line)
	if p.Character <= 0 {
		return start
	}
	if ix.ascii[p.Line] {
		if start+p.Character > end {
			return end
		}
		return start + p.Character
	}
	col := 0
	for off := start; off < end; {
		if col >= p.Character {
			return off
		}
		r, size := utf8.DecodeRuneInString(ix.text[off:end])
		col += utf16Len(r)
		if col > p.Character {
			// inside a surrogate pair; snap to the rune start
			return off
		}
		off += size
	}
	return end
}

// PlaceFor returns the line and UTF-16 column of a byte offset, clamped to the text.
func (ix *Index) PlaceFor(offset int) Place {
	if offset < 0 {
		offset = 0
	}
	if offset > len(ix.text) {
		offset = len(ix.text)
	}
	line := sort.Search(len(ix.lineStarts), func(i int) bool {
		return ix.lineStarts[i] > offset
	}) - 1
	start := ix.lineStarts[line]
	if ix.ascii[line] {
		return Place{Line: line, Character: offset - start}
	}
	col := 0
	for _, r := range ix.text[start:offset] {
		col += utf16Len(r)
	}
	return Place{Line: line, Character: col}
}

// RangeFor converts a byte span into a Range.
func (ix *Index) RangeFor(start, end int) Range {
	return Range{Start: ix.PlaceFor(start), End: ix.PlaceFor(end)}
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
