// Package highlight maps raw text plus grammar annotations onto an annotated
// representation and applies accepted corrections back to the text.
//
// All offsets are character (rune) offsets.
package highlight

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"linguistlm/internal/domain"
)

// Segment is a run of literal text, optionally wrapped by an annotation.
// Start and End are the clamped bounds actually covered; Annotation keeps the
// annotation as received so its key stays stable.
type Segment struct {
	Text       string
	Start      int
	End        int
	Annotation *domain.GrammarAnnotation
}

// View is the rendered representation of one text snapshot.
type View struct {
	Segments []Segment
}

// Render filters ignored annotations, sorts the rest by start and emits
// literal and annotated segments. Overlapping annotations are truncated so no
// character is emitted twice.
func Render(text string, annotations []domain.GrammarAnnotation, ignored *IgnoredSet) View {
	runes := []rune(text)
	n := len(runes)

	visible := Visible(annotations, ignored)
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].Start < visible[j].Start })

	var view View
	last := 0
	for i := range visible {
		annotation := visible[i]
		rawStart := clamp(annotation.Start, 0, n)
		rawEnd := clamp(annotation.End, 0, n)
		if rawEnd <= last {
			continue
		}
		start := max(last, rawStart)
		end := max(start, rawEnd)

		if start > last {
			view.Segments = append(view.Segments, Segment{Text: string(runes[last:start]), Start: last, End: start})
		}
		if end > start {
			view.Segments = append(view.Segments, Segment{
				Text:       string(runes[start:end]),
				Start:      start,
				End:        end,
				Annotation: &annotation,
			})
		}
		last = end
	}
	if last < n {
		view.Segments = append(view.Segments, Segment{Text: string(runes[last:]), Start: last, End: n})
	}
	return view
}

// PlainText concatenates every segment, reproducing the rendered text.
func (v View) PlainText() string {
	var b strings.Builder
	for _, seg := range v.Segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Annotated returns the annotations that survived rendering, in order.
func (v View) Annotated() []domain.GrammarAnnotation {
	out := make([]domain.GrammarAnnotation, 0, len(v.Segments))
	for _, seg := range v.Segments {
		if seg.Annotation != nil {
			out = append(out, *seg.Annotation)
		}
	}
	return out
}

// HTML renders escaped text with tooltip spans for the presentation layer.
func (v View) HTML() string {
	var b strings.Builder
	for _, seg := range v.Segments {
		if seg.Annotation == nil {
			b.WriteString(html.EscapeString(seg.Text))
			continue
		}
		fmt.Fprintf(&b,
			`<span class="highlight-tooltip" data-key="%s" data-start="%d" data-end="%d" data-error="%s" data-suggestion="%s">%s</span>`,
			html.EscapeString(seg.Annotation.Key()),
			seg.Start,
			seg.End,
			html.EscapeString(seg.Annotation.Error),
			html.EscapeString(seg.Annotation.Suggestion),
			html.EscapeString(seg.Text),
		)
	}
	return b.String()
}

// Len is the character length of the rendered text.
func (v View) Len() int {
	total := 0
	for _, seg := range v.Segments {
		total += utf8.RuneCountInString(seg.Text)
	}
	return total
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
