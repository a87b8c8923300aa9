package position

import (
	"fmt"
)

// Place is a zero-based line and UTF-16 column, the unit editors send over the wire.
type Place struct {
	Line      int
	Character int
}

func (p Place) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Compare orders places lexicographically by line, then column.
func (p Place) Compare(o Place) int {
	switch {
	case p.Line < o.Line:
		return -1
	case p.Line > o.Line:
		return 1
	case p.Character < o.Character:
		return -1
	case p.Character > o.Character:
		return 1
	}
	return 0
}

func (p Place) Before(o Place) bool {
	return p.Compare(o) < 0
}

// Range is a half-open span of places.
type Range struct {
	Start Place
	End   Place
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// ContainsInclusive reports start <= p <= end. A cursor sitting right after a word still
// belongs to it.
func (r Range) ContainsInclusive(p Place) bool {
	return r.Start.Compare(p) <= 0 && p.Compare(r.End) <= 0
}

// ContainsExclusive reports start < p < end. Empty and single-column ranges never match.
func (r Range) ContainsExclusive(p Place) bool {
	return r.Start.Compare(p) < 0 && p.Compare(r.End) < 0
}

// Union returns the smallest range covering both.
func (r Range) Union(o Range) Range {
	out := r
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if out.End.Before(o.End) {
		out.End = o.End
	}
	return out
}

// Extend widens r so that it covers o as well.
func (r *Range) Extend(o Range) {
	*r = r.Union(o)
}
