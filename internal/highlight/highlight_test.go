package highlight

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"linguistlm/internal/domain"
)

func TestRenderWithoutAnnotationsReturnsText(t *testing.T) {
	t.Parallel()

	view := Render("Tom & <Jerry>", nil, nil)
	if view.PlainText() != "Tom & <Jerry>" {
		t.Fatalf("unexpected plain text: %q", view.PlainText())
	}
	if got := view.HTML(); got != "Tom &amp; &lt;Jerry&gt;" {
		t.Fatalf("unexpected html: %q", got)
	}
}

func TestRenderWrapsAnnotatedSpans(t *testing.T) {
	t.Parallel()

	text := "She go to school."
	annotations := []domain.GrammarAnnotation{
		{Start: 4, End: 6, Error: "Subject-verb agreement", Suggestion: "goes", Original: "go"},
	}
	view := Render(text, annotations, nil)
	if len(view.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %+v", view.Segments)
	}
	seg := view.Segments[1]
	if seg.Annotation == nil || seg.Text != "go" || seg.Start != 4 || seg.End != 6 {
		t.Fatalf("unexpected annotated segment: %+v", seg)
	}
	html := view.HTML()
	if !strings.Contains(html, `data-suggestion="goes"`) || !strings.Contains(html, `data-key="4-6-Subject-verb agreement"`) {
		t.Fatalf("unexpected html: %q", html)
	}
	if !strings.HasPrefix(html, "She ") || !strings.HasSuffix(html, " to school.") {
		t.Fatalf("unexpected html: %q", html)
	}
}

func TestRenderTruncatesOverlapsAndSkipsCovered(t *testing.T) {
	t.Parallel()

	text := "abcdefghij"
	annotations := []domain.GrammarAnnotation{
		{Start: 5, End: 9, Error: "b"},
		{Start: 2, End: 6, Error: "a"},
		{Start: 3, End: 5, Error: "covered"},
		{Start: 8, End: 20, Error: "tail"},
	}
	view := Render(text, annotations, nil)
	if view.PlainText() != text {
		t.Fatalf("plain text changed: %q", view.PlainText())
	}
	var annotated []string
	for _, seg := range view.Segments {
		if seg.Annotation != nil {
			annotated = append(annotated, seg.Annotation.Error+":"+seg.Text)
		}
	}
	want := []string{"a:cdef", "b:ghi", "tail:j"}
	if strings.Join(annotated, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected annotated segments: %v", annotated)
	}
}

func TestRenderHonorsIgnoredSet(t *testing.T) {
	t.Parallel()

	annotation := domain.GrammarAnnotation{Start: 0, End: 3, Error: "spelling", Suggestion: "The"}
	ignored := NewIgnoredSet()
	ignored.Add(annotation)

	view := Render("teh cat", []domain.GrammarAnnotation{annotation}, ignored)
	if len(view.Annotated()) != 0 {
		t.Fatalf("expected ignored annotation to be hidden")
	}
	if ignored.Len() != 1 || !ignored.Has(annotation) {
		t.Fatalf("unexpected ignored set state")
	}
}

func TestIgnoredSetZeroValueAndNil(t *testing.T) {
	t.Parallel()

	annotation := domain.GrammarAnnotation{Start: 0, End: 3, Error: "spelling", Suggestion: "The"}

	var zero IgnoredSet
	zero.Add(annotation)
	if zero.Len() != 1 || !zero.Has(annotation) {
		t.Fatalf("zero value set must record adds")
	}

	var missing *IgnoredSet
	missing.Add(annotation)
	if missing.Len() != 0 || missing.Has(annotation) {
		t.Fatalf("nil set must ignore nothing")
	}
}

func TestRenderConcatenationReproducesText(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("ab cdé<>&\"'.,ñ")
	for i := 0; i < 200; i++ {
		length := rng.Intn(40)
		runes := make([]rune, length)
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(runes)

		annotations := make([]domain.GrammarAnnotation, rng.Intn(6))
		for j := range annotations {
			start := rng.Intn(length+10) - 5
			annotations[j] = domain.GrammarAnnotation{
				Start: start,
				End:   start + rng.Intn(12) - 2,
				Error: "e",
			}
		}
		if got := Render(text, annotations, nil).PlainText(); got != text {
			t.Fatalf("case %d: got %q want %q (annotations %+v)", i, got, text, annotations)
		}
	}
}

func TestCaretLocateAndOffset(t *testing.T) {
	t.Parallel()

	view := Render("hello world", []domain.GrammarAnnotation{{Start: 6, End: 11, Error: "x"}}, nil)

	if c := view.Locate(6); c.Segment != 0 || c.Offset != 6 {
		t.Fatalf("boundary caret should stay in the earlier segment, got %+v", c)
	}
	if c := view.Locate(8); c.Segment != 1 || c.Offset != 2 {
		t.Fatalf("unexpected caret: %+v", c)
	}
	if c := view.Locate(99); c.Segment != 1 || c.Offset != 5 {
		t.Fatalf("out of range caret should clamp to end, got %+v", c)
	}
	if got := view.Offset(Caret{Segment: 1, Offset: 3}); got != 9 {
		t.Fatalf("expected offset 9, got %d", got)
	}
	if c := (View{}).Locate(3); c != (Caret{}) {
		t.Fatalf("empty view should yield zero caret, got %+v", c)
	}
}

func TestPreserveKeepsCharacterOffsetAcrossStructureChange(t *testing.T) {
	t.Parallel()

	text := "I has a apple"
	before := Render(text, nil, nil)
	after := Render(text, []domain.GrammarAnnotation{
		{Start: 2, End: 5, Error: "verb"},
		{Start: 6, End: 7, Error: "article"},
	}, nil)

	caret := before.Locate(10)
	moved := Preserve(before, after, caret)
	if after.Offset(moved) != 10 {
		t.Fatalf("expected offset 10, got %d (%+v)", after.Offset(moved), moved)
	}
	if moved.Segment != 4 || moved.Offset != 3 {
		t.Fatalf("unexpected caret placement: %+v", moved)
	}
}

func TestResolveUsesIndicesWhenOriginalMatches(t *testing.T) {
	t.Parallel()

	span, err := Resolve("the cat sat", domain.GrammarAnnotation{Start: 4, End: 7, Original: "cat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span != (Span{Start: 4, End: 7}) {
		t.Fatalf("unexpected span: %+v", span)
	}
}

func TestResolveReanchorsWithinWindow(t *testing.T) {
	t.Parallel()

	// Text was typed ahead of the annotated word.
	span, err := Resolve("Oh, the cat sat", domain.GrammarAnnotation{Start: 4, End: 7, Original: "cat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span != (Span{Start: 8, End: 11}) {
		t.Fatalf("unexpected span: %+v", span)
	}
}

func TestResolveFallsBackToClosestGlobalOccurrence(t *testing.T) {
	t.Parallel()

	text := "foo " + strings.Repeat(".", 200) + " bar " + strings.Repeat(".", 200) + " foo"
	span, err := Resolve(text, domain.GrammarAnnotation{Start: 205, End: 208, Original: "foo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span.Start != 0 {
		t.Fatalf("expected first occurrence to win the tie on distance, got %+v", span)
	}

	span, err = Resolve(text, domain.GrammarAnnotation{Start: 300, End: 303, Original: "foo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := len(text) - 3; span.Start != want {
		t.Fatalf("expected closest occurrence at %d, got %+v", want, span)
	}
}

func TestResolveReportsLostAnchor(t *testing.T) {
	t.Parallel()

	_, err := Resolve("nothing here", domain.GrammarAnnotation{Start: 0, End: 3, Original: "xyz"})
	if !errors.Is(err, ErrAnchorLost) {
		t.Fatalf("expected ErrAnchorLost, got %v", err)
	}
}

func TestResolveExpandsMidWordSpans(t *testing.T) {
	t.Parallel()

	span, err := Resolve("I recieved it", domain.GrammarAnnotation{Start: 4, End: 6, Original: "ci"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span != (Span{Start: 2, End: 10}) {
		t.Fatalf("expected whole word span, got %+v", span)
	}
}

func TestAcceptRewritesFoundOccurrenceAndShiftsOthers(t *testing.T) {
	t.Parallel()

	// The text gained a leading "Well, " since annotations were computed.
	text := "Well, she go to school and he go home."
	target := domain.GrammarAnnotation{Start: 4, End: 6, Error: "agreement", Suggestion: "goes", Original: "go"}
	before := domain.GrammarAnnotation{Start: 0, End: 4, Error: "before", Original: "Well"}
	after := domain.GrammarAnnotation{Start: 30, End: 32, Error: "after", Suggestion: "goes", Original: "go"}
	overlap := domain.GrammarAnnotation{Start: 8, End: 12, Error: "overlap", Original: "e go"}

	updated, others, err := Accept(text, target, []domain.GrammarAnnotation{before, target, after, overlap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != "Well, she goes to school and he go home." {
		t.Fatalf("unexpected text: %q", updated)
	}
	if len(others) != 2 {
		t.Fatalf("expected overlap and target to be dropped, got %+v", others)
	}
	if others[0].Error != "before" || others[0].Start != 0 {
		t.Fatalf("unexpected earlier annotation: %+v", others[0])
	}
	if others[1].Error != "after" || others[1].Start != 32 || others[1].End != 34 {
		t.Fatalf("expected later annotation shifted by 2, got %+v", others[1])
	}
}

func TestAcceptLeavesTextWhenAnchorLost(t *testing.T) {
	t.Parallel()

	target := domain.GrammarAnnotation{Start: 0, End: 3, Suggestion: "The", Original: "teh"}
	updated, _, err := Accept("a cat", target, nil)
	if !errors.Is(err, ErrAnchorLost) {
		t.Fatalf("expected ErrAnchorLost, got %v", err)
	}
	if updated != "a cat" {
		t.Fatalf("text should be unchanged, got %q", updated)
	}
}

func TestAcceptAllAppliesRightToLeft(t *testing.T) {
	t.Parallel()

	annotations := []domain.GrammarAnnotation{
		{Start: 0, End: 1, Error: "case", Suggestion: "A", Original: "a"},
		{Start: 5, End: 6, Error: "case", Suggestion: "Z", Original: "z"},
	}
	got, applied := AcceptAll("a xyz", annotations, nil)
	if got != "A xyZ" {
		t.Fatalf("expected %q, got %q", "A xyZ", got)
	}
	if applied != 2 {
		t.Fatalf("expected 2 corrections, got %d", applied)
	}
}

func TestAcceptAllSkipsIgnoredAndOverlapping(t *testing.T) {
	t.Parallel()

	dismissed := domain.GrammarAnnotation{Start: 0, End: 1, Error: "dismissed", Suggestion: "I", Original: "i"}
	annotations := []domain.GrammarAnnotation{
		dismissed,
		{Start: 2, End: 6, Error: "verb", Suggestion: "have", Original: "has "},
		{Start: 5, End: 7, Error: "overlap", Suggestion: " an", Original: " a"},
		{Start: 8, End: 13, Error: "noun", Suggestion: "apples", Original: "apple"},
	}
	ignored := NewIgnoredSet(dismissed.Key())

	got, applied := AcceptAll("i has a apple", annotations, ignored)
	if got != "i has an apples" {
		t.Fatalf("unexpected text: %q", got)
	}
	if applied != 2 {
		t.Fatalf("expected 2 corrections, got %d", applied)
	}
}
