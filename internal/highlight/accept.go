package highlight

import (
	"errors"
	"sort"
	"unicode"

	"linguistlm/internal/domain"
)

// AnchorWindow bounds how far from its recorded start an annotation's
// original span is searched for before falling back to the whole text.
const AnchorWindow = 64

var ErrAnchorLost = errors.New("annotation span no longer present in text")

// Span is a resolved half-open character range.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// Resolve finds where an annotation's original span currently lives in text.
// Recorded indices are trusted when they still cover the original span;
// otherwise the nearest occurrence inside AnchorWindow is used, then the
// nearest anywhere. Alphanumeric spans with word characters on both sides
// grow to the enclosing word; a span touching a word edge is a prefix or
// suffix edit and is left as is.
func Resolve(text string, annotation domain.GrammarAnnotation) (Span, error) {
	return resolve([]rune(text), annotation)
}

func resolve(runes []rune, annotation domain.GrammarAnnotation) (Span, error) {
	n := len(runes)
	start := clamp(annotation.Start, 0, n)
	end := clamp(annotation.End, start, n)
	original := []rune(annotation.Original)
	if len(original) == 0 {
		return Span{Start: start, End: end}, nil
	}

	var span Span
	switch {
	case equalRunes(runes[start:end], original):
		span = Span{Start: start, End: end}
	default:
		pos, ok := closestOccurrence(runes, original, annotation.Start, annotation.Start-AnchorWindow, annotation.Start+AnchorWindow)
		if !ok {
			pos, ok = closestOccurrence(runes, original, annotation.Start, 0, n)
		}
		if !ok {
			return Span{}, ErrAnchorLost
		}
		span = Span{Start: pos, End: pos + len(original)}
	}

	if isWord(original) && insideWord(runes, span) {
		span = expandToWord(runes, span)
	}
	return span, nil
}

// Accept replaces the resolved span of target with its suggestion and returns
// the new text together with the remaining annotations: those after the span
// shifted by the length delta, those before it untouched, overlapping ones
// dropped. On ErrAnchorLost the text is returned unchanged.
func Accept(text string, target domain.GrammarAnnotation, others []domain.GrammarAnnotation) (string, []domain.GrammarAnnotation, error) {
	runes := []rune(text)
	span, err := resolve(runes, target)
	if err != nil {
		return text, others, err
	}

	suggestion := []rune(target.Suggestion)
	updated := splice(runes, span, suggestion)
	delta := len(suggestion) - span.Len()

	kept := make([]domain.GrammarAnnotation, 0, len(others))
	for _, other := range others {
		if other.Key() == target.Key() {
			continue
		}
		switch {
		case other.Start >= span.End:
			other.Start += delta
			other.End += delta
			kept = append(kept, other)
		case other.End <= span.Start:
			kept = append(kept, other)
		}
	}
	return string(updated), kept, nil
}

// AcceptAll applies every non-ignored annotation against a single snapshot.
// Spans are resolved against the original text and applied right to left;
// annotations that cannot be anchored or overlap an already applied span are
// skipped. It returns the new text and the number of corrections applied.
func AcceptAll(text string, annotations []domain.GrammarAnnotation, ignored *IgnoredSet) (string, int) {
	runes := []rune(text)

	type edit struct {
		span        Span
		replacement []rune
	}
	edits := make([]edit, 0, len(annotations))
	for _, annotation := range Visible(annotations, ignored) {
		span, err := resolve(runes, annotation)
		if err != nil {
			continue
		}
		edits = append(edits, edit{span: span, replacement: []rune(annotation.Suggestion)})
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].span.Start != edits[j].span.Start {
			return edits[i].span.Start > edits[j].span.Start
		}
		return edits[i].span.End > edits[j].span.End
	})

	applied := 0
	boundary := len(runes)
	for _, e := range edits {
		if e.span.End > boundary {
			continue
		}
		runes = splice(runes, e.span, e.replacement)
		boundary = e.span.Start
		applied++
	}
	return string(runes), applied
}

func splice(runes []rune, span Span, replacement []rune) []rune {
	out := make([]rune, 0, len(runes)-span.Len()+len(replacement))
	out = append(out, runes[:span.Start]...)
	out = append(out, replacement...)
	return append(out, runes[span.End:]...)
}

// closestOccurrence returns the occurrence of needle starting within [lo, hi]
// nearest to anchor. Ties go to the earlier occurrence.
func closestOccurrence(haystack, needle []rune, anchor, lo, hi int) (int, bool) {
	lo = max(lo, 0)
	hi = min(hi, len(haystack)-len(needle))
	best, bestDist := -1, 0
	for pos := lo; pos <= hi; pos++ {
		if !equalRunes(haystack[pos:pos+len(needle)], needle) {
			continue
		}
		dist := pos - anchor
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = pos, dist
		}
	}
	return best, best >= 0
}

func insideWord(runes []rune, span Span) bool {
	return span.Start > 0 && isWordRune(runes[span.Start-1]) &&
		span.End < len(runes) && isWordRune(runes[span.End])
}

func expandToWord(runes []rune, span Span) Span {
	for span.Start > 0 && isWordRune(runes[span.Start-1]) {
		span.Start--
	}
	for span.End < len(runes) && isWordRune(runes[span.End]) {
		span.End++
	}
	return span
}

func isWord(runes []rune) bool {
	for _, r := range runes {
		if !isWordRune(r) {
			return false
		}
	}
	return len(runes) > 0
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
