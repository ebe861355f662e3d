package highlight

import "unicode/utf8"

// Caret is a position inside a rendered view: a segment index and a
// character offset within that segment.
type Caret struct {
	Segment int
	Offset  int
}

// Locate walks forward through the segments and places the caret at the
// given character offset from the start. The first segment whose end reaches
// the offset wins, so a caret on a boundary stays at the end of the earlier
// segment.
func (v View) Locate(offset int) Caret {
	if offset < 0 {
		offset = 0
	}
	chars := 0
	for i, seg := range v.Segments {
		length := utf8.RuneCountInString(seg.Text)
		if chars+length >= offset {
			return Caret{Segment: i, Offset: offset - chars}
		}
		chars += length
	}
	if len(v.Segments) == 0 {
		return Caret{}
	}
	lastIdx := len(v.Segments) - 1
	return Caret{Segment: lastIdx, Offset: utf8.RuneCountInString(v.Segments[lastIdx].Text)}
}

// Offset measures the caret as a character count from the start.
func (v View) Offset(c Caret) int {
	if len(v.Segments) == 0 || c.Segment < 0 {
		return 0
	}
	if c.Segment >= len(v.Segments) {
		return v.Len()
	}
	chars := 0
	for i := 0; i < c.Segment; i++ {
		chars += utf8.RuneCountInString(v.Segments[i].Text)
	}
	return chars + clamp(c.Offset, 0, utf8.RuneCountInString(v.Segments[c.Segment].Text))
}

// Preserve carries a caret across a re-render by character offset, regardless
// of how the segment structure changed.
func Preserve(before, after View, c Caret) Caret {
	return after.Locate(before.Offset(c))
}
